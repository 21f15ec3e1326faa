package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidMode is returned when a trading mode is neither Shadow nor Live.
var ErrInvalidMode = errors.New("invalid trading mode")

// Mode represents the trading mode selected by the operator.
type Mode string

const (
	ModeShadow Mode = "Shadow"
	ModeLive   Mode = "Live"
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid checks if the mode is a valid value.
func (m Mode) IsValid() bool {
	return m == ModeShadow || m == ModeLive
}

// ParseMode converts raw input into a Mode. Matching is case-sensitive.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}
