package auth

import "time"

// User is the domain representation of an account. It mirrors the users table
// and carries no JSON annotations so it can be reused by different
// presentation layers.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        *string
	IsVerified   bool
	IsAdmin      bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated context passed explicitly into every domain
// operation. Handlers build it from a verified token; services never read
// identity from anywhere else.
type Principal struct {
	UserID     string
	IsAdmin    bool
	IsVerified bool
}

// SignupRequest starts registration. It only triggers OTP delivery; the
// account is created on verification.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// VerifyOTPRequest completes registration with the emailed code.
type VerifyOTPRequest struct {
	Email    string `json:"email"`
	Code     string `json:"otp"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult bundles the token and domain user returned after a successful
// login or verification.
type LoginResult struct {
	Token string
	User  User
}
