// Package dates parses published timestamps from the wild variety of formats
// sources emit, and classifies how much a parsed value can be trusted for
// hard cutoff filtering.
package dates

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Confidence says where a date value came from and whether the cutoff filter
// may act on it.
type Confidence int

const (
	// ConfidenceNone: no date found.
	ConfidenceNone Confidence = iota
	// ConfidenceText: parsed from free text; trusted for cutoff filtering
	// only when the text itself is unambiguous (see TrustedText).
	ConfidenceText
	// ConfidenceAttribute: read from a machine-readable attribute
	// (datetime/content); always trusted.
	ConfidenceAttribute
)

// Parse parses an arbitrary date string and returns it in UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.UTC(), nil
}

var (
	// 12 May 2024, May 12, 2024, 2024-05-12, 12/05/2024, 12.05.2024
	dayMonthYearRe = regexp.MustCompile(`(?i)\b(\d{1,2}[./-]\d{1,2}[./-]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}(st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}|(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(st|nd|rd|th)?,?\s+\d{4})\b`)
	yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// TrustedText reports whether a date read from free text is unambiguous
// enough to act on: it must contain a day/month/year pattern or at least a
// 4-digit year. Vague phrasings ("last year", "May 12") are not trusted, so
// articles carrying them are kept rather than dropped as too old.
func TrustedText(s string) bool {
	return dayMonthYearRe.MatchString(s) || yearRe.MatchString(s)
}

// Trusted reports whether a parsed date of the given confidence may be used
// for cutoff filtering of the raw value it was parsed from.
func Trusted(conf Confidence, raw string) bool {
	switch conf {
	case ConfidenceAttribute:
		return true
	case ConfidenceText:
		return TrustedText(raw)
	default:
		return false
	}
}
