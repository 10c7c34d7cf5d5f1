package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// decimalScale is the number of fractional digits Decimal preserves.
const decimalScale = 6

// Decimal is a non-negative fixed-point USD amount with six fractional
// digits, stored as micros. Prices mined from answer text are parsed and
// compared exactly; binary floats would drift on values like 0.03.
type Decimal struct {
	micros int64
}

// DecimalFromMicros builds a Decimal from a raw micro-dollar count.
func DecimalFromMicros(micros int64) Decimal {
	return Decimal{micros: micros}
}

// ParseDecimal parses a plain decimal string ("0.03", "15", "2.50") into a
// Decimal. Currency symbols and thousands separators must already be
// stripped by the caller. More than six fractional digits is an error.
func ParseDecimal(s string) (Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Decimal{}, eris.New("decimal: empty input")
	}

	whole, frac := s, ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole, frac = s[:idx], s[idx+1:]
		if strings.IndexByte(frac, '.') >= 0 {
			return Decimal{}, eris.Errorf("decimal: multiple points in %q", s)
		}
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimalScale {
		return Decimal{}, eris.Errorf("decimal: %q exceeds %d fractional digits", s, decimalScale)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return Decimal{}, eris.Errorf("decimal: invalid integer part in %q", s)
	}

	f := int64(0)
	if frac != "" {
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return Decimal{}, eris.Errorf("decimal: invalid fractional part in %q", s)
		}
		for i := len(frac); i < decimalScale; i++ {
			f *= 10
		}
	}

	return Decimal{micros: w*1_000_000 + f}, nil
}

// Micros returns the raw micro-dollar count.
func (d Decimal) Micros() int64 { return d.micros }

// Equal reports exact equality.
func (d Decimal) Equal(other Decimal) bool { return d.micros == other.micros }

// IsZero reports whether the amount is zero.
func (d Decimal) IsZero() bool { return d.micros == 0 }

// String renders the amount with trailing fractional zeros trimmed.
func (d Decimal) String() string {
	whole := d.micros / 1_000_000
	frac := d.micros % 1_000_000
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	fs := strconv.FormatInt(frac, 10)
	for len(fs) < decimalScale {
		fs = "0" + fs
	}
	fs = strings.TrimRight(fs, "0")
	return strconv.FormatInt(whole, 10) + "." + fs
}

// MarshalJSON encodes the amount as a JSON string to keep it exact.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts either a JSON string or a bare number literal.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDecimal(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
