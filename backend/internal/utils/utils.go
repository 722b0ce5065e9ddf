package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/itchan-dev/threads/shared/errors"
)

const (
	MaxThreadTextLen = 10_000
	MinUsernameLen   = 3
	MaxUsernameLen   = 30
)

var usernameRe = regexp.MustCompile(`^[a-z0-9_.]+$`)

type ThreadTextValidator struct{}

func (e *ThreadTextValidator) Text(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.Validation("Text is too short")
	}
	if utf8.RuneCountInString(text) > MaxThreadTextLen {
		return errors.Validation("Text is too long")
	}
	return nil
}

type UserValidator struct{}

// Username expects the already lower-cased form
func (e *UserValidator) Username(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLen {
		return errors.Validation("Username is too short")
	}
	if n > MaxUsernameLen {
		return errors.Validation("Username is too long")
	}
	if !usernameRe.MatchString(username) {
		return errors.Validation("Username may contain only letters, digits, '_' and '.'")
	}
	return nil
}
