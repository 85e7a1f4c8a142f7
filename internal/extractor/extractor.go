// Package extractor pulls structured invoice fields out of plain text.
// It is pure: no I/O, no state, and it never fails — a field the text
// does not contain comes back as nil.
package extractor

import (
	"regexp"
	"strings"
)

// Fields is the extractor's output. Nil means "not found".
type Fields struct {
	Vendor    *string `json:"vendor"`
	InvoiceNo *string `json:"invoice_no"`
	Date      *string `json:"date"`
	Total     *string `json:"total"`
}

// Per-field candidate patterns in priority order: the first pattern that
// matches anywhere in the normalized text wins, later ones are not tried.
var (
	vendorPatterns = compileAll(
		`(?i)From:\s*(.+)`,
		`(?i)Vendor:\s*(.+)`,
		`(?i)Bill To:\s*(.+)`,
	)
	invoicePatterns = compileAll(
		`(?i)Invoice\s*No\.?:?\s*([\w\-/]+)`,
		`(?i)Inv\.?\s*#\s*([\w\-/]+)`,
		`(?i)Invoice\s*#\s*([\w\-/]+)`,
	)
	datePatterns = compileAll(
		`(\d{4}-\d{2}-\d{2})`,
		`(\d{2}/\d{2}/\d{4})`,
		`(\d{1,2} \w{3,9} \d{4})`,
	)
	amountPatterns = compileAll(
		`(?i)\bTotal\s*[:\-]?\s*([$₹£]?\s*[0-9,]+(?:\.[0-9]{2})?)`,
		`(?i)\bAmount\s*[:\-]?\s*([$₹£]?\s*[0-9,]+(?:\.[0-9]{2})?)`,
		`([$₹£]\s*[0-9,]+(?:\.[0-9]{2})?)`,
	)

	lineEndings = regexp.MustCompile(`\r\n?`)
	spaceRuns   = regexp.MustCompile(` +`)
	amountNoise = regexp.MustCompile(`[^0-9.,₹$£]`)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		res = append(res, regexp.MustCompile(e))
	}
	return res
}

// Extract parses text into candidate fields. Deterministic for identical
// input; empty input short-circuits to all-nil.
func Extract(text string) Fields {
	if text == "" {
		return Fields{}
	}
	norm := normalize(text)

	return Fields{
		Vendor:    firstMatch(vendorPatterns, norm),
		InvoiceNo: firstMatch(invoicePatterns, norm),
		Date:      firstMatch(datePatterns, norm),
		Total:     normalizeAmount(firstMatch(amountPatterns, norm)),
	}
}

// normalize collapses line-ending variants to \n and horizontal
// whitespace runs to single spaces. Line breaks are kept so that
// line-anchored patterns (Vendor:, From:) stop at end of line.
func normalize(text string) string {
	s := lineEndings.ReplaceAllString(text, "\n")
	s = strings.ReplaceAll(s, "\t", " ")
	return spaceRuns.ReplaceAllString(s, " ")
}

// firstMatch tries patterns in order and returns the first non-empty
// capture group of the first matching pattern (the whole match when the
// pattern has no groups), trimmed. Nil when nothing matches.
func firstMatch(patterns []*regexp.Regexp, text string) *string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		for _, g := range m[1:] {
			if g != "" {
				v := strings.TrimSpace(g)
				return &v
			}
		}
		v := strings.TrimSpace(m[0])
		return &v
	}
	return nil
}

// normalizeAmount strips a raw amount down to a bare numeric string:
// noise characters and thousands-separator commas removed, currency
// symbol dropped. "₹ 1,234" -> "1234", "$2,000.00" -> "2000.00".
func normalizeAmount(raw *string) *string {
	if raw == nil {
		return nil
	}
	s := strings.ReplaceAll(*raw, " ", " ")
	s = strings.TrimSpace(s)
	s = amountNoise.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")
	for _, sym := range []string{"$", "₹", "£"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	if s == "" {
		return nil
	}
	return &s
}
