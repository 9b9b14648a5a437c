package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and totals go out as JSON numbers, which is what the mobile
	// client does arithmetic on.
	decimal.MarshalJSONWithoutQuotes = true
}

// FlexibleNumber is a numeric form value that can arrive either as a JSON
// number, a JSON string or a multipart form field.
type FlexibleNumber string

// UnmarshalJSON implements custom JSON unmarshaling for numbers and numeric strings
func (n *FlexibleNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = FlexibleNumber(strings.TrimSpace(s))
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected a number, got %s", data)
	}
	*n = FlexibleNumber(num.String())
	return nil
}

// UnmarshalParam implements gin's binding.BindUnmarshaler for form values
func (n *FlexibleNumber) UnmarshalParam(param string) error {
	*n = FlexibleNumber(strings.TrimSpace(param))
	return nil
}

// IsSet reports whether any value was supplied
func (n FlexibleNumber) IsSet() bool {
	return strings.TrimSpace(string(n)) != ""
}

// Decimal parses the value as an exact decimal
func (n FlexibleNumber) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(string(n)))
}

// Int parses the value as a whole number; "3" and "3.0" are accepted, "3.5" is not
func (n FlexibleNumber) Int() (int, error) {
	d, err := n.Decimal()
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s is not a whole number", d.String())
	}
	if d.Abs().GreaterThan(decimal.NewFromInt(1 << 31)) {
		return 0, fmt.Errorf("%s is out of range", d.String())
	}
	return int(d.IntPart()), nil
}
