// keyhash prints the bcrypt hash to put in IDENTITY_PROVIDER_KEY_HASH.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/spec-kit/trade-desk/internal/auth"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var key string
	var cost int
	flagSet := pflag.NewFlagSet("keyhash", pflag.ContinueOnError)
	flagSet.StringVar(&key, "key", "", "provider key to hash (read from stdin when empty)")
	flagSet.IntVar(&cost, "cost", 12, "bcrypt cost")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if key == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return errors.New("empty key")
	}

	hash, err := auth.HashProviderKey(key, cost)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
