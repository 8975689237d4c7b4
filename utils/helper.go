package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// ValidatePhoneNumber checks the number against the given ISO country code
// (defaults to MM).
func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	if countryCode == "" {
		countryCode = "MM"
	}
	num, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return fmt.Errorf("invalid phone number: %w", err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return errors.New("invalid phone number")
	}
	return nil
}

// ProcessValidationErrors flattens validator.ValidationErrors into a
// field -> message map for 422 payloads.
func ProcessValidationErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				out[field] = "is required"
			case "max":
				out[field] = "must be at most " + fe.Param() + " characters"
			case "oneof":
				out[field] = "must be one of: " + fe.Param()
			default:
				out[field] = "is invalid"
			}
		}
		return out
	}
	out["request"] = "malformed request body"
	return out
}

// ParseDateString parses a yyyy-mm-dd or RFC3339 date string in the given
// timezone (server-local when blank).
func ParseDateString(dateString string, timezone string) (time.Time, error) {
	loc := time.Local
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, err
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", dateString, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, dateString); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want yyyy-mm-dd or RFC3339)", dateString)
}

// DateOnly truncates to the calendar day in t's location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
