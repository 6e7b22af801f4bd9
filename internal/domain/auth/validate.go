package auth

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// UsernamePattern is shared with the HTTP binding layer.
var UsernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if !UsernamePattern.MatchString(username) {
		return "", errors.New("username must be 3-30 characters long and contain only letters, numbers, and underscores")
	}
	return username, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", errors.New("invalid email format")
	}
	if addr.Address != email {
		return "", errors.New("invalid email format")
	}
	return email, nil
}

func normalizeNickname(raw string) (string, error) {
	nickname := strings.TrimSpace(raw)
	length := utf8.RuneCountInString(nickname)
	if length < 2 || length > 100 {
		return "", errors.New("nickname must be 2-100 characters long")
	}
	for _, r := range nickname {
		if unicode.IsControl(r) {
			return "", errors.New("nickname cannot contain control characters")
		}
	}
	return nickname, nil
}
