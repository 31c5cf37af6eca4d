package auth

import "errors"

// UserMessage maps an auth error to the text shown to the user.
func UserMessage(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, ErrUserNotFound):
		return "User not found. Please check your username."
	case errors.Is(err, ErrWrongPassword):
		return "Incorrect password. Please try again."
	case errors.Is(err, ErrTooManyRequests):
		return "Too many failed attempts. Please try again later."
	case errors.Is(err, ErrInvalidUsername):
		return "Invalid username format."
	case errors.Is(err, ErrUsernameTaken):
		return "Username already exists. Please choose another."
	case errors.Is(err, ErrWeakPassword):
		return "Password is too weak. Use at least 6 characters."
	case errors.Is(err, ErrBlocked):
		return "Your account has been blocked. Please contact support."
	case errors.Is(err, ErrRegistrationClosed):
		return "Registrations are currently closed."
	case errors.Is(err, ErrConfirmation):
		return "Confirmation text did not match."
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please log in again."
	default:
		return "Something went wrong. Please try again."
	}
}
