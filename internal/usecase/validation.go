package usecase

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/Jxel117/GastanGO-sub000/internal/domain"
)

const (
	maxEmailLen = 255
	// bcrypt only accepts passwords up to this many bytes.
	maxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func normalizeUsername(username string) string { return strings.TrimSpace(username) }

func validateEmail(v *domain.ValidationError, email string) {
	switch {
	case email == "":
		v.Add("email", "is required")
	case len(email) > maxEmailLen:
		v.Add("email", fmt.Sprintf("must not exceed %d characters", maxEmailLen))
	default:
		addr, err := mail.ParseAddress(email)
		if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
			v.Add("email", "is not a valid address")
		}
	}
}

func validateUsername(v *domain.ValidationError, username string) {
	switch {
	case username == "":
		v.Add("username", "is required")
	case !usernamePattern.MatchString(username):
		v.Add("username", "must be 3-32 characters of letters, digits, '_', '.' or '-'")
	}
}

func validatePassword(v *domain.ValidationError, field, password string, minLen int) {
	if password == "" {
		v.Add(field, "is required")
		return
	}
	if len(password) < minLen {
		v.Add(field, fmt.Sprintf("must be at least %d characters long", minLen))
		return
	}
	if len(password) > maxPasswordBytes {
		v.Add(field, fmt.Sprintf("must not exceed %d bytes", maxPasswordBytes))
		return
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		v.Add(field, "must contain at least one letter and one digit")
	}
}
