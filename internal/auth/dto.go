package auth

import "github.com/angelmondragon/licensedesk/pkg/enums"

const tokenTypeBearer = "bearer"

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse carries the access token and the role it grants.
type LoginResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	Role        enums.Role `json:"role"`
}

// MeResponse describes the authenticated user.
type MeResponse struct {
	Username string     `json:"username"`
	Role     enums.Role `json:"role"`
}
