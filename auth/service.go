package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"collexa/mailer"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be 8-128 characters")
	// ErrNotVerified signals a login before email verification.
	ErrNotVerified = errors.New("auth: email not verified")
	// ErrValidation wraps malformed signup input.
	ErrValidation = errors.New("auth: invalid input")
)

const (
	otpTTL   = 10 * time.Minute
	tokenTTL = 7 * 24 * time.Hour
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// Service handles registration, verification, and authentication.
type Service struct {
	repo      Repository
	mail      mailer.OTPSender
	jwtSecret []byte
	now       func() time.Time
	genCode   func() string
}

// NewService creates a new authentication service.
func NewService(repo Repository, mail mailer.OTPSender, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		mail:      mail,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
		genCode:   randomCode,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithCodeGenerator overrides OTP generation. Test hook.
func (s *Service) WithCodeGenerator(gen func() string) *Service {
	s.genCode = gen
	return s
}

// Signup validates the registration data and emails a one-time code. The
// account itself is only created when the code is verified.
func (s *Service) Signup(ctx context.Context, req SignupRequest) error {
	if err := validateSignup(req.Name, req.Email, req.Password, req.Phone); err != nil {
		return err
	}

	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	return s.issueOTP(ctx, req.Email)
}

// ResendOTP replaces the pending code for the email and sends a fresh one.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	return s.issueOTP(ctx, email)
}

func (s *Service) issueOTP(ctx context.Context, email string) error {
	code := s.genCode()
	if err := s.repo.ReplaceOTP(ctx, email, code, s.now().Add(otpTTL)); err != nil {
		return err
	}
	if err := s.mail.SendOTP(ctx, email, code); err != nil {
		return fmt.Errorf("auth: deliver otp: %w", err)
	}
	return nil
}

// VerifyOTP consumes the emailed code and creates the verified account.
func (s *Service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (LoginResult, error) {
	if err := validateSignup(req.Name, req.Email, req.Password, req.Phone); err != nil {
		return LoginResult{}, err
	}
	if len(req.Code) != 6 {
		return LoginResult{}, fmt.Errorf("%w: otp must be 6 digits", ErrValidation)
	}

	if err := s.repo.ConsumeOTP(ctx, req.Email, req.Code, s.now()); err != nil {
		return LoginResult{}, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: hash password: %w", err)
	}

	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Phone:        phone,
		IsVerified:   true,
	})
	if err != nil {
		return LoginResult{}, err
	}

	token, err := s.generateToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{Token: token, User: user}, nil
}

// Login authenticates a user and returns a JWT token. Wrong email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return LoginResult{}, ErrNotVerified
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		return LoginResult{}, err
	}

	token, err := s.generateToken(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: generate token: %w", err)
	}

	return LoginResult{Token: token, User: user}, nil
}

// GetUserByID retrieves user information by ID.
func (s *Service) GetUserByID(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyToken validates a JWT token and returns the embedded principal.
func (s *Service) VerifyToken(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return Principal{}, fmt.Errorf("auth: parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, fmt.Errorf("auth: invalid token")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return Principal{}, fmt.Errorf("auth: invalid user_id in token")
	}
	isAdmin, _ := claims["is_admin"].(bool)
	isVerified, _ := claims["is_verified"].(bool)

	return Principal{UserID: userID, IsAdmin: isAdmin, IsVerified: isVerified}, nil
}

func (s *Service) generateToken(user User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":     user.ID,
		"is_admin":    user.IsAdmin,
		"is_verified": user.IsVerified,
		"exp":         now.Add(tokenTTL).Unix(),
		"iat":         now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func validateSignup(name, email, password, phone string) error {
	if l := len(name); l < 2 || l > 50 {
		return fmt.Errorf("%w: name must be 2-50 characters", ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	if l := len(password); l < 8 || l > 128 {
		return ErrWeakPassword
	}
	if phone != "" && !phonePattern.MatchString(phone) {
		return fmt.Errorf("%w: invalid phone number", ErrValidation)
	}
	return nil
}

func randomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64())
}
