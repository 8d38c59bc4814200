package scrape

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Result is one successful price extraction from a product page.
type Result struct {
	Store     string
	Title     string
	Price     float64
	Available bool
}

// ExtractionError covers every way a single URL can fail: network errors,
// HTTP errors, timeouts, and pages where no usable price was found. Callers
// count and skip; the next scheduled pass is the retry.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var priceTokenRegex = regexp.MustCompile(`[0-9][0-9.,\s]*`)

// ParsePrice pulls a numeric price out of scraped text, tolerating currency
// symbols, thousands separators and decimal commas ("R1 299,00", "$1,299.99").
func ParsePrice(text string) (float64, error) {
	token := priceTokenRegex.FindString(text)
	if token == "" {
		return 0, fmt.Errorf("no numeric value in %q", text)
	}
	token = strings.TrimRight(strings.ReplaceAll(token, " ", ""), ".,")

	lastComma := strings.LastIndex(token, ",")
	lastDot := strings.LastIndex(token, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// the later separator is the decimal mark
		if lastComma > lastDot {
			token = strings.ReplaceAll(token, ".", "")
			token = strings.Replace(token, ",", ".", 1)
		} else {
			token = strings.ReplaceAll(token, ",", "")
		}
	case lastComma >= 0:
		if decimalSeparator(token, lastComma) {
			token = strings.Replace(token, ",", ".", 1)
		} else {
			token = strings.ReplaceAll(token, ",", "")
		}
	case lastDot >= 0:
		if !decimalSeparator(token, lastDot) {
			token = strings.ReplaceAll(token, ".", "")
		}
	}

	price, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", text, err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, fmt.Errorf("unusable price %v in %q", price, text)
	}
	return price, nil
}

// decimalSeparator reports whether the single separator at position i looks
// like a decimal mark (one or two trailing digits, only one occurrence).
func decimalSeparator(token string, i int) bool {
	if strings.Count(token, token[i:i+1]) != 1 {
		return false
	}
	frac := len(token) - i - 1
	return frac == 1 || frac == 2
}
