package dto

import "time"

// IdentityCallbackRequest is what the identity bridge posts after a
// successful external login.
type IdentityCallbackRequest struct {
	SteamID     string `json:"steamid"`
	PersonaName string `json:"personaname"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Identity  IdentityResponse `json:"identity"`
}

// IdentityResponse describes the caller.
type IdentityResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsTrader    bool   `json:"is_trader"`
}
