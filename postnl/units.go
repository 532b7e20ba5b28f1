package postnl

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	dimensionsPattern = regexp.MustCompile(`^(\d+(?:,\d+)?) x (\d+(?:,\d+)?) x (\d+(?:,\d+)?) (\w+)$`)
	weightPattern     = regexp.MustCompile(`^(\d+(?:,\d+)?) (\w+)$`)
)

// Dimensions of a package in centimetres, parsed from the formatted portal
// value such as "21 x 30 x 40,5 cm".
type Dimensions struct {
	Height float64
	Width  float64
	Depth  float64
}

// ParseDimensions parses "<h> x <w> x <d> <unit>" with a decimal comma and
// unit cm or m.
func ParseDimensions(s string) (Dimensions, error) {
	m := dimensionsPattern.FindStringSubmatch(s)
	if m == nil {
		return Dimensions{}, fmt.Errorf("invalid formatted dimensions %q", s)
	}

	var scale float64
	switch m[4] {
	case "cm":
		scale = 1
	case "m":
		scale = 100
	default:
		return Dimensions{}, fmt.Errorf("unsupported length unit %q", m[4])
	}

	values := make([]float64, 3)
	for i := range values {
		v, err := parseDecimal(m[i+1])
		if err != nil {
			return Dimensions{}, err
		}
		values[i] = v * scale
	}

	return Dimensions{Height: values[0], Width: values[1], Depth: values[2]}, nil
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%g x %g x %g cm", d.Height, d.Width, d.Depth)
}

// UnmarshalJSON decodes the formatted string form.
func (d *Dimensions) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDimensions(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Weight of a package in grams, parsed from "300 gram" or "3 kg".
type Weight float64

// ParseWeight parses "<value> <unit>" with a decimal comma and unit gram or kg.
func ParseWeight(s string) (Weight, error) {
	m := weightPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("malformed weight %q", s)
	}

	v, err := parseDecimal(m[1])
	if err != nil {
		return 0, err
	}

	switch m[2] {
	case "gram":
		return Weight(v), nil
	case "kg":
		return Weight(v * 1000), nil
	default:
		return 0, fmt.Errorf("unsupported weight unit %q", m[2])
	}
}

// Grams returns the weight in grams.
func (w Weight) Grams() float64 {
	return float64(w)
}

// Kilograms returns the weight in kilograms.
func (w Weight) Kilograms() float64 {
	return float64(w) / 1000
}

func (w Weight) String() string {
	if w >= 1000 {
		return fmt.Sprintf("%g kg", w.Kilograms())
	}
	return fmt.Sprintf("%g gram", w.Grams())
}

// UnmarshalJSON decodes the formatted string form.
func (w *Weight) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseWeight(s)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

func parseDecimal(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}
