package utils

import "golang.org/x/crypto/bcrypt"

// MinPasswordLength applies to counter staff and admin accounts alike.
const MinPasswordLength = 8

func HashPassword(plain string) ([]byte, error) {
	if len(plain) < MinPasswordLength {
		return nil, NewValidationError("password", "must be at least 8 characters")
	}
	return bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
}

func ComparePassword(hashed string, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
