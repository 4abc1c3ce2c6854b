package importer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
)

var (
	fieldSeparators = regexp.MustCompile(`[;,\t]`)
	whitespace      = regexp.MustCompile(`\s+`)
	nonNumeric      = regexp.MustCompile(`[^0-9.\-]`)
	floatPrefix     = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)`)
	intPrefix       = regexp.MustCompile(`^[-+]?\d+`)
	percentPattern  = regexp.MustCompile(`([0-9]{1,2})([.,]?)([0-9]{0,2})\s*%`)
)

// ParseAmount reads "1 234$", "99,5" or "-12.40" as a number; anything
// unreadable is 0.
func ParseAmount(raw string) float64 {
	s := whitespace.ReplaceAllString(strings.TrimSpace(raw), "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, ok := parseFloatPrefix(nonNumeric.ReplaceAllString(s, ""))
	if !ok {
		return 0
	}
	return v
}

// ParseRate accepts a province code (AB, NS1, NS2), a percentage or a
// fraction and snaps it to one of 0.05, 0.14 or 0.15.
func ParseRate(raw string) float64 {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case s == "":
		return 0
	case strings.Contains(s, "AB"):
		return 0.05
	case strings.Contains(s, "NS1"):
		return 0.15
	case strings.Contains(s, "NS2"):
		return 0.14
	}

	if m := percentPattern.FindStringSubmatch(s); m != nil {
		digits := m[1]
		if m[3] != "" {
			digits += "." + m[3]
		}
		if n, ok := parseFloatPrefix(digits); ok {
			return snapRate(n / 100)
		}
	}
	if n, ok := parseFloatPrefix(strings.ReplaceAll(s, ",", ".")); ok {
		if n > 1 {
			n /= 100
		}
		return snapRate(n)
	}
	return 0
}

func snapRate(rate float64) float64 {
	switch {
	case rate <= 0.095:
		return 0.05
	case rate <= 0.145:
		return 0.14
	default:
		return 0.15
	}
}

// ProvinceFromRate maps a snapped rate back to its tax code.
func ProvinceFromRate(rate float64) string {
	switch {
	case math.Abs(rate-0.05) < 1e-6:
		return "AB"
	case math.Abs(rate-0.15) < 1e-6:
		return "NS1"
	case math.Abs(rate-0.14) < 1e-6:
		return "NS2"
	}
	return ""
}

// ParsePaymentClaims turns the exported spreadsheet into payment-claim rows.
// Columns are description, claim number, amount, then the tax in the fourth
// or fifth column. Lines before the DESCRIPTION header are ignored and total
// lines become subtotal rows.
func ParsePaymentClaims(text string) []settingsdomain.PaymentClaimRow {
	lines := logicalLines(text)
	start := 0
	for i, l := range lines {
		if strings.HasPrefix(strings.ToUpper(l), "DESCRIPTION") {
			start = i + 1
			break
		}
	}

	rows := make([]settingsdomain.PaymentClaimRow, 0, len(lines)-start)
	for _, line := range lines[start:] {
		parts := fieldSeparators.Split(line, -1)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		desc := parts[0]
		if desc == "" {
			continue
		}

		num, hasNum := parseIntPrefix(column(parts, 1))
		amount := ParseAmount(column(parts, 2))
		rateRaw := column(parts, 3)
		if rateRaw == "" {
			rateRaw = column(parts, 4)
		}

		lower := strings.ToLower(desc)
		total := strings.HasPrefix(lower, "total ") ||
			strings.HasPrefix(lower, "total claim") ||
			strings.HasPrefix(lower, "total milestone") ||
			(strings.HasPrefix(lower, "claim") && hasNum && num == 0) ||
			(!hasNum && rateRaw == "") ||
			amount == 0

		if total {
			rows = append(rows, settingsdomain.PaymentClaimRow{Description: desc, Amount: amount, Subtotal: true})
			continue
		}

		rate := ParseRate(rateRaw)
		row := settingsdomain.PaymentClaimRow{
			Description: desc,
			Amount:      amount,
			TaxRate:     &rate,
			Province:    ProvinceFromRate(rate),
		}
		if hasNum {
			row.ClaimNumber = &num
		}
		row.Compute()
		rows = append(rows, row)
	}
	return rows
}

// logicalLines splits on newlines, rejoining quoted fields that span lines.
func logicalLines(text string) []string {
	var (
		lines  []string
		buffer string
		open   bool
	)
	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		l := strings.TrimPrefix(raw, "\ufeff")
		odd := strings.Count(l, `"`)%2 == 1
		switch {
		case open:
			buffer += "\n" + l
			if odd {
				if strings.TrimSpace(buffer) != "" {
					lines = append(lines, strings.TrimSpace(buffer))
				}
				buffer, open = "", false
			}
		case odd:
			buffer, open = l, true
		case strings.TrimSpace(l) != "":
			lines = append(lines, strings.TrimSpace(l))
		}
	}
	if strings.TrimSpace(buffer) != "" {
		lines = append(lines, strings.TrimSpace(buffer))
	}
	return lines
}

func column(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

func parseFloatPrefix(s string) (float64, bool) {
	m := floatPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseIntPrefix(s string) (int, bool) {
	m := intPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}
