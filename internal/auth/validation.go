package auth

import (
	"fmt"
	"regexp"
)

const (
	minUsernameLength = 4
	minPasswordLength = 4
	// bcrypt only accepts passwords up to 72 bytes.
	maxPasswordBytes = 72
)

var emailPattern = regexp.MustCompile(`^[\w\-\.]+@([\w-]+\.)+\w{2,4}$`)

// ValidationError carries a message that is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func ValidateUsername(username string) error {
	if len(username) < minUsernameLength {
		return &ValidationError{
			Field:   "username",
			Message: fmt.Sprintf("Username %s is too short, at least %d characters", username, minUsernameLength),
		}
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return &ValidationError{Field: "password", Message: "You need to provide a stronger password"}
	}
	if len(password) > maxPasswordBytes {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Your password is too long, at most %d bytes", maxPasswordBytes),
		}
	}
	return nil
}

func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return &ValidationError{
			Field:   "email",
			Message: fmt.Sprintf("The email %s is invalid, provide a correct one", email),
		}
	}
	return nil
}

func ValidateSignup(username, email, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	return ValidateEmail(email)
}
