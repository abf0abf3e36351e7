package models

// LoginRequest holds credentials submitted on the sign-in form.
type LoginRequest struct {
	Identifier string `json:"identifier" form:"identifier" validate:"required"`
	Password   string `json:"password" form:"password" validate:"required"`
}

// RegisterRequest creates a self-service account on the remote API.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginResponse is returned by the remote local-auth endpoint.
type LoginResponse struct {
	JWT  string `json:"jwt"`
	User User   `json:"user"`
}

// RequestMeta carries client details recorded in the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}
