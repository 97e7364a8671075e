package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Compile turns a user-supplied pattern into the regular expression stored on
// the rule. Simple and multiple inputs are fully escaped so users can type
// terms containing regex metacharacters without surprises; advanced input is
// taken as-is.
//
// The result is validated with the same case-insensitive prefix the scanner
// applies, so a rule that compiles here will also compile at scan time.
func Compile(userPattern string, pt PatternType) (string, error) {
	var compiled string

	switch pt {
	case PatternSimple:
		term := strings.TrimSpace(userPattern)
		if term == "" {
			return "", ErrEmptyPattern
		}
		compiled = `\b` + regexp.QuoteMeta(term) + `\b`

	case PatternMultiple:
		var alternatives []string
		for _, term := range strings.Split(userPattern, ",") {
			term = strings.TrimSpace(term)
			if term == "" {
				continue
			}
			alternatives = append(alternatives, `\b`+regexp.QuoteMeta(term)+`\b`)
		}
		if len(alternatives) == 0 {
			return "", ErrEmptyPattern
		}
		compiled = "(" + strings.Join(alternatives, "|") + ")"

	case PatternAdvanced:
		if strings.TrimSpace(userPattern) == "" {
			return "", ErrEmptyPattern
		}
		compiled = userPattern

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPatternType, pt)
	}

	re, err := regexp.Compile("(?i)" + compiled)
	if err != nil {
		return "", &InvalidPatternError{Pattern: userPattern, Err: err}
	}
	if re.MatchString("") {
		return "", &InvalidPatternError{Pattern: userPattern, Err: errors.New("pattern matches empty input")}
	}

	return compiled, nil
}
