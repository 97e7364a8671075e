package rules

import (
	"errors"
	"fmt"
)

// ErrEmptyPattern is returned when a pattern compiles down to nothing, for
// example a multiple-term pattern whose input is only commas and whitespace.
var ErrEmptyPattern = errors.New("pattern contains no usable terms")

// ErrEmptyName is returned when a rule is saved without a name.
var ErrEmptyName = errors.New("rule name is required")

// ErrUnknownPatternType is returned for pattern types other than simple,
// multiple and advanced.
var ErrUnknownPatternType = errors.New("unknown pattern type")

// ErrRuleNotFound is returned for lookups and mutations of unknown rule IDs.
var ErrRuleNotFound = errors.New("rule not found")

// InvalidPatternError reports a pattern that does not compile as a regular
// expression. The original input is preserved so the caller can surface it.
type InvalidPatternError struct {
	Pattern string
	Err     error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Err
}
