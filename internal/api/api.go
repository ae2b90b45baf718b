// Package api defines the JSON bodies exchanged with the remote ledger.
// Field names match the wire format exactly; both the server and the
// client import these types.
package api

// Route paths.
const (
	PathRegister = "/register"
	PathLogin    = "/login"
	PathLogout   = "/logout"
	PathUser     = "/user"
	PathModify   = "/user/modify"
	PathHealth   = "/health"
	PathMetrics  = "/metrics"
)

// RegisterRequest creates a user.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterResponse is returned on successful registration.
type RegisterResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// LoginRequest exchanges credentials for a bearer token.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the session token.
type LoginResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token"`
}

// ModifyRequest applies signed deltas to the caller's totals.
// RequestID makes a retried request apply at most once.
type ModifyRequest struct {
	XPDelta    int    `json:"xpDelta,omitempty"`
	CoinsDelta int    `json:"coinsDelta,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
}

// User is the remote ledger record as exposed over the wire.
type User struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	Email     *string `json:"email"`
	XP        int     `json:"xp"`
	Coins     int     `json:"coins"`
	Level     int     `json:"level"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// UserResponse wraps GET /user.
type UserResponse struct {
	User User `json:"user"`
}

// ModifyResponse wraps POST /user/modify.
type ModifyResponse struct {
	OK   bool `json:"ok"`
	User User `json:"user"`
}

// OKResponse is a bare acknowledgement.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
