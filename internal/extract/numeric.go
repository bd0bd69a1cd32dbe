// Package extract recovers scalar channel fields from rendered detail pages.
// The source markup is inconsistent across variants and locales, so every
// field is resolved through an ordered chain of strategies.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoNumber is returned when a string contains no parseable count.
var ErrNoNumber = errors.New("no parseable number")

// suffixZeros maps a magnitude suffix to its decimal-shift width.
var suffixZeros = map[string]int{
	"k": 3,
	"m": 6,
	"b": 9,
}

// countPattern matches a number with optional separators, decimal point and
// magnitude suffix, e.g. "1,234", "1.25M", "2.3b", "800".
var countPattern = regexp.MustCompile(`(?i)(\d[\d,\s\x{00a0}]*(?:\.\d+)?)\s*([kmb])?\b`)

// ParseCount parses a human-formatted count into an exact integer.
// Thousands separators are stripped, magnitude suffixes are applied
// case-insensitively, and decimal values keep full precision ("1.25M" is
// 1250000, never a rounded 1.3M). Trailing words ("subscribers", "views")
// are ignored. Display rounding is a presentation concern, not ours.
func ParseCount(raw string) (int64, error) {
	match := countPattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrNoNumber, raw)
	}

	number := strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(match[1])
	zeros := 0
	if match[2] != "" {
		zeros = suffixZeros[strings.ToLower(match[2])]
	}

	intPart := number
	fracPart := ""
	if dot := strings.IndexByte(number, '.'); dot >= 0 {
		intPart = number[:dot]
		fracPart = number[dot+1:]
	}

	if len(fracPart) > zeros {
		// More fractional digits than the suffix can absorb ("1.2345" with
		// no suffix): keep the integer part only.
		fracPart = fracPart[:zeros]
	}
	fracPart += strings.Repeat("0", zeros-len(fracPart))

	value, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoNumber, raw)
	}
	return value, nil
}
