package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	otpTTL        = 15 * time.Minute
	resetTokenTTL = 1 * time.Hour
)

// Mailer delivers transactional mail. Implemented by infrastructure over
// SMTP; tests substitute a recorder.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, name, code string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// AuthService manages user accounts, credentials and bearer tokens.
type AuthService struct {
	store     DataStore
	mailer    Mailer
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *logrus.Logger
}

func NewAuthService(store DataStore, mailer Mailer, jwtSecret string, tokenTTL time.Duration, logger *logrus.Logger) *AuthService {
	return &AuthService{
		store:     store,
		mailer:    mailer,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

// RegisterInput carries the signup fields.
type RegisterInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an unverified account and mails a verification code. A
// taken email address is a conflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if in.FullName == "" {
		return nil, NewValidationError("full_name", "full_name is required")
	}
	if in.Email == "" {
		return nil, NewValidationError("email", "email is required")
	}
	if len(in.Password) < 8 {
		return nil, NewValidationError("password", "password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, NewConflictError("email %q is already registered", in.Email)
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	otp, err := numericCode(6)
	if err != nil {
		return nil, err
	}
	otpExpires := time.Now().Add(otpTTL)

	user := &User{
		ID:           uuid.New().String(),
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: string(hash),
		OTP:          otp,
		OTPExpires:   &otpExpires,
		Role:         "user",
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.mailer.SendVerificationCode(ctx, user.Email, user.FullName, otp); err != nil {
		// The account exists either way; the code can be re-requested.
		s.logger.WithError(err).WithField("email", user.Email).
			Error("Failed to send verification mail")
	}

	s.logger.WithField("email", user.Email).Info("User registered")
	return user, nil
}

// VerifyEmail checks the mailed code and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.OTP == "" || user.OTP != code {
		return nil, ErrInvalidOTP
	}
	if user.OTPExpires == nil || time.Now().After(*user.OTPExpires) {
		return nil, ErrInvalidOTP
	}

	user.EmailVerified = true
	user.OTP = ""
	user.OTPExpires = nil

	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to verify user: %w", err)
	}
	return user, nil
}

// ResendVerification issues a fresh code for an unverified account.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return NewConflictError("email %q is already verified", email)
	}

	otp, err := numericCode(6)
	if err != nil {
		return err
	}
	expires := time.Now().Add(otpTTL)
	user.OTP = otp
	user.OTPExpires = &expires

	if err := s.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("failed to refresh verification code: %w", err)
	}
	return s.mailer.SendVerificationCode(ctx, user.Email, user.FullName, otp)
}

// Login checks credentials and issues a signed bearer token. Unverified
// accounts cannot log in. Unknown email and wrong password are the same
// error to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return "", nil, ErrEmailNotVerified
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}

	s.logger.WithField("email", user.Email).Info("User logged in")
	return token, user, nil
}

// RequestPasswordReset mails a reset token. An unknown email is reported as
// success to avoid account enumeration.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, err := randomToken(32)
	if err != nil {
		return err
	}
	expires := time.Now().Add(resetTokenTTL)
	user.ResetToken = token
	user.ResetExpires = &expires

	if err := s.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return s.mailer.SendPasswordReset(ctx, user.Email, user.FullName, token)
}

// ResetPassword redeems a reset token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if len(newPassword) < 8 {
		return NewValidationError("password", "password must be at least 8 characters")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if user.ResetToken == "" || user.ResetToken != token {
		return ErrInvalidToken
	}
	if user.ResetExpires == nil || time.Now().After(*user.ResetExpires) {
		return ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.ResetToken = ""
	user.ResetExpires = nil

	if err := s.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	s.logger.WithField("email", user.Email).Info("Password reset")
	return nil
}

// Profile returns the account for a validated token subject.
func (s *AuthService) Profile(ctx context.Context, userID string) (*User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrInvalidID
	}
	return s.store.GetUser(ctx, userID)
}

func (s *AuthService) issueToken(user *User) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a bearer token and returns the user id it was issued
// for.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// numericCode returns n random decimal digits.
func numericCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	digits := make([]byte, n)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}

// randomToken returns n random bytes hex encoded.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
