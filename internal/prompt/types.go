// Package prompt provides interactive terminal prompts for collecting user input.
package prompt

import (
	"fmt"
	"strings"

	"github.com/jayteealao/gitsvc/internal/auth"
)

// ValidateField returns the validation applied to one challenge field.
func ValidateField(f auth.Field) func(string) error {
	switch f.Name {
	case "username":
		return validateUsername
	default:
		return validateRequired
	}
}

func validateRequired(value string) error {
	if value == "" {
		return fmt.Errorf("this field is required")
	}
	return nil
}

func validateUsername(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("this field is required")
	}
	if strings.ContainsAny(value, " \t\r\n:") {
		return fmt.Errorf("username cannot contain whitespace or ':'")
	}
	return nil
}

// GetPlaceholder returns placeholder text for a challenge field.
func GetPlaceholder(f auth.Field) string {
	switch f.Name {
	case "username":
		return "git username"
	case "password":
		return "password or access token"
	default:
		return ""
	}
}

// Description explains a challenge to the user.
func Description(c auth.Challenge) string {
	switch c.Kind {
	case auth.KindPassphrase:
		return "Your SSH key is protected. Enter its passphrase to continue."
	default:
		if c.Remote != "" {
			return fmt.Sprintf("Authentication is required for %s.", c.Remote)
		}
		return "Authentication is required by the remote."
	}
}
