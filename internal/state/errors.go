// Package state holds the client-side stores: the lawyer's identity and the
// cached session list. Both proxy the REST backend and are safe for use from
// concurrent tea.Cmd goroutines.
package state

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lexnova/lexnova/internal/api"
)

var (
	// ErrValidation wraps input problems caught before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrInFlight is returned when a create is already running.
	ErrInFlight = errors.New("request already in flight")
)

// Limits applied before hitting the backend.
const (
	MinNameLength       = 2
	MinScriptLength     = 50
	MaxScriptBytes      = 10 << 20
	maxParticipantField = 200
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ValidationMessage returns the user-facing part of a validation error.
func ValidationMessage(err error) string {
	msg := err.Error()
	return strings.TrimPrefix(msg, ErrValidation.Error()+": ")
}

// ValidateCredentials checks login input.
func ValidateCredentials(email, password string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return invalid("Please enter a valid email address")
	}
	if password == "" {
		return invalid("Password is required")
	}
	return nil
}

// ValidateRegistration checks registration input.
func ValidateRegistration(email, password, name string) error {
	if err := ValidateCredentials(email, password); err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinNameLength {
		return invalid("Name must be at least %d characters", MinNameLength)
	}
	return nil
}

// ValidateNewSession checks a creation payload.
func ValidateNewSession(req api.NewSession) error {
	if err := validateName("Groom", req.GroomName); err != nil {
		return err
	}
	if err := validateName("Bride", req.BrideName); err != nil {
		return err
	}
	if cfg := req.AIConfig; cfg != nil {
		switch cfg.VoiceStyle {
		case api.VoiceWarm, api.VoiceAuthoritative, api.VoiceNeutral:
		default:
			return invalid("Unknown voice style %q", cfg.VoiceStyle)
		}
		switch cfg.Strictness {
		case api.StrictnessLow, api.StrictnessHigh:
		default:
			return invalid("Unknown strictness %q", cfg.Strictness)
		}
	}
	return nil
}

func validateName(label, name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return invalid("%s name is required", label)
	}
	if n < MinNameLength {
		return invalid("%s name must be at least %d characters", label, MinNameLength)
	}
	if n > maxParticipantField {
		return invalid("%s name is too long", label)
	}
	return nil
}
