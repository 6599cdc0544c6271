package auth

import (
	"strings"

	"github.com/spec-kit/trade-desk/internal/domain"
)

// Privileges is the static trader allow-list fixed at process start.
// An empty list grants privilege to nobody.
type Privileges struct {
	ids map[string]struct{}
}

// NewPrivileges builds the allow-list, ignoring blank entries.
func NewPrivileges(ids []string) *Privileges {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return &Privileges{ids: set}
}

// Empty reports whether the allow-list has no entries.
func (p *Privileges) Empty() bool {
	return p == nil || len(p.ids) == 0
}

// Size returns the number of privileged ids.
func (p *Privileges) Size() int {
	if p == nil {
		return 0
	}
	return len(p.ids)
}

// Contains reports whether identityID is on the allow-list.
func (p *Privileges) Contains(identityID string) bool {
	if p.Empty() || identityID == "" {
		return false
	}
	_, ok := p.ids[identityID]
	return ok
}

// IdentityContext answers "who is calling" for one request or session.
type IdentityContext struct {
	identity   *domain.Identity
	privileges *Privileges
}

// NewIdentityContext binds an optional identity to the allow-list.
func NewIdentityContext(identity *domain.Identity, privileges *Privileges) IdentityContext {
	if identity != nil && strings.TrimSpace(identity.ID) == "" {
		identity = nil
	}
	return IdentityContext{identity: identity, privileges: privileges}
}

// Anonymous returns a context with no identity.
func Anonymous(privileges *Privileges) IdentityContext {
	return IdentityContext{privileges: privileges}
}

// CurrentIdentity returns the resolved identity, if any.
func (c IdentityContext) CurrentIdentity() (domain.Identity, bool) {
	if c.identity == nil {
		return domain.Identity{}, false
	}
	return *c.identity, true
}

// IsPrivileged reports whether the current identity is a trader.
func (c IdentityContext) IsPrivileged() bool {
	if c.identity == nil {
		return false
	}
	return c.privileges.Contains(c.identity.ID)
}

// Requester converts the context into the value passed to service calls.
func (c IdentityContext) Requester() Requester {
	identity, ok := c.CurrentIdentity()
	if !ok {
		return Requester{}
	}
	return Requester{Identity: &identity, Privileged: c.IsPrivileged()}
}

// Requester is the caller as seen by the ticket and message services.
type Requester struct {
	Identity   *domain.Identity
	Privileged bool
}

// Resolved reports whether an identity is present.
func (r Requester) Resolved() bool {
	return r.Identity != nil && r.Identity.ID != ""
}

// ID returns the identity id or an empty string.
func (r Requester) ID() string {
	if r.Identity == nil {
		return ""
	}
	return r.Identity.ID
}
