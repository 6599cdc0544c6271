package domain

// Identity is the caller record supplied by the external identity provider.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SenderFor returns the only sender role an identity may post as.
func SenderFor(privileged bool) MessageSender {
	if privileged {
		return SenderTrader
	}
	return SenderUser
}
