package rules

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinAge            = 18
	MaxAge            = 65
	MinUsernameLength = 3
	MinPasswordLength = 6
	MinPhoneLength    = 10
	MaxReportDetails  = 1000
)

var ErrInvalidAgeRange = errors.New("invalid age range")

func ValidAge(age int) bool {
	return age >= MinAge && age <= MaxAge
}

func ValidUsername(username string) bool {
	return len([]rune(strings.TrimSpace(username))) >= MinUsernameLength
}

func ValidPassword(password string) bool {
	return len([]rune(password)) >= MinPasswordLength
}

func ValidPhone(phone string) bool {
	return len([]rune(strings.TrimSpace(phone))) >= MinPhoneLength
}

// SyntheticEmail maps a username to the login identity used by the
// credential store.
func SyntheticEmail(username, domain string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "@" + domain
}

// AgeRange is an inclusive bound pair parsed from "min-max".
type AgeRange struct {
	Min int
	Max int
}

func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

func ParseAgeRange(raw string) (AgeRange, error) {
	minRaw, maxRaw, ok := strings.Cut(strings.TrimSpace(raw), "-")
	if !ok {
		return AgeRange{}, fmt.Errorf("%w: %q", ErrInvalidAgeRange, raw)
	}
	lo, err := strconv.Atoi(strings.TrimSpace(minRaw))
	if err != nil {
		return AgeRange{}, fmt.Errorf("%w: %q", ErrInvalidAgeRange, raw)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(maxRaw))
	if err != nil {
		return AgeRange{}, fmt.Errorf("%w: %q", ErrInvalidAgeRange, raw)
	}
	if lo < 0 || hi < lo {
		return AgeRange{}, fmt.Errorf("%w: %q", ErrInvalidAgeRange, raw)
	}
	return AgeRange{Min: lo, Max: hi}, nil
}

// StatusSegment returns the part of a relationship status before the
// first colon, trimmed.
func StatusSegment(status string) string {
	head, _, _ := strings.Cut(status, ":")
	return strings.TrimSpace(head)
}
