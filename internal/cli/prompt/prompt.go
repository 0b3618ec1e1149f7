// Package prompt wraps promptui for nexusctl's interactive questions.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// ErrPasswordMismatch indicates passwords don't match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// IsAborted returns true if the error indicates the user aborted (Ctrl+C).
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, ErrAborted)
}

func run(p promptui.Prompt) (string, error) {
	result, err := p.Run()
	if err != nil && IsAborted(err) {
		return "", ErrAborted
	}
	return result, err
}

// Input prompts for text, offering defaultValue.
func Input(label, defaultValue string) (string, error) {
	return run(promptui.Prompt{Label: label, Default: defaultValue})
}

// Password prompts for a password with masking. minLength of zero accepts
// anything.
func Password(label string, minLength int) (string, error) {
	return run(promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	})
}

// NewPassword prompts for a password twice.
func NewPassword(label string, minLength int) (string, error) {
	password, err := Password(label, minLength)
	if err != nil {
		return "", err
	}
	confirm, err := Password("Confirm "+strings.ToLower(label), 0)
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// Confirm asks a yes/no question and defaults to no. force skips the
// question.
func Confirm(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	p := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := p.Run()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, promptui.ErrAbort):
		return false, nil
	case IsAborted(err):
		return false, ErrAborted
	default:
		return false, err
	}
}
