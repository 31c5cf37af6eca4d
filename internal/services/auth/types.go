package auth

import (
	"errors"
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/enums"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrSessionNotFound = errors.New("session not found")
	ErrRefreshNotFound = errors.New("refresh token not found")

	ErrUserNotFound       = errors.New("user not found")
	ErrWrongPassword      = errors.New("wrong password")
	ErrTooManyRequests    = errors.New("too many failed attempts")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrWeakPassword       = errors.New("weak password")
	ErrBlocked            = errors.New("account blocked")
	ErrRegistrationClosed = errors.New("registrations are closed")
	ErrConfirmation       = errors.New("confirmation phrase mismatch")
)

// ValidationError is an input problem with a message fit for the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

type SessionRecord struct {
	SID       string
	UserID    string
	Role      string
	ExpiresAt time.Time
}

type AccessClaims struct {
	UserID    string
	SID       string
	Role      string
	ExpiresAt time.Time
}

// Account is the credential record behind a user id.
type Account struct {
	UserID       string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Me struct {
	ID       string
	Username string
	Role     string
}

// Destination is where a freshly signed-in user is sent.
type Destination string

const (
	DestinationAdmin     Destination = "admin"
	DestinationUpload    Destination = "upload"
	DestinationDashboard Destination = "dashboard"
)

type AuthResult struct {
	AccessToken   string
	RefreshToken  string
	AccessExpires time.Time
	Me            Me
	Redirect      Destination
}

type RegisterInput struct {
	Username           string `json:"username" validate:"required"`
	Password           string `json:"password" validate:"required"`
	RealName           string `json:"realName" validate:"required"`
	Phone              string `json:"phone" validate:"required"`
	Age                int    `json:"age" validate:"required"`
	Position           string `json:"position" validate:"required"`
	IAmInto            string `json:"iamInto"`
	RelationshipStatus string `json:"relationshipStatus" validate:"required"`
}

// NewAccountInput creates an account on behalf of an administrator.
type NewAccountInput struct {
	Username string
	Password string
	RealName string
	Phone    string
	Age      int
	Role     enums.Role
	ActorID  string
}
