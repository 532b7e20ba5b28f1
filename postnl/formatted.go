package postnl

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// placeholderPattern matches "{kind:value}" parameters in status texts, e.g.
// "{date:2026-03-01T10:00:00+01:00}".
var placeholderPattern = regexp.MustCompile(`\{(\w+):([^}]+)\}`)

// Layouts used to render status parameters.
const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04"
	dateTimeLayout = "2006-01-02 15:04"
)

// FormattedStatus holds the human readable status texts with all parameters
// rendered in the time zone the portal sent them in.
type FormattedStatus struct {
	Title string
	Body  string
	Short string
}

type rawFormattedStatus struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Short string `json:"short"`
}

// UnmarshalJSON renders the body and short texts. An unknown parameter kind
// or an unparseable timestamp fails the decode.
func (f *FormattedStatus) UnmarshalJSON(data []byte) error {
	var raw rawFormattedStatus
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	body, err := RenderStatusText(raw.Body)
	if err != nil {
		return fmt.Errorf("failed to render status body: %w", err)
	}
	short, err := RenderStatusText(raw.Short)
	if err != nil {
		return fmt.Errorf("failed to render short status: %w", err)
	}

	*f = FormattedStatus{Title: raw.Title, Body: body, Short: short}
	return nil
}

// RenderStatusText replaces every "{kind:timestamp}" parameter in text. Kinds
// are date, time, datetime and dateabs; timestamps are RFC 3339.
func RenderStatusText(text string) (string, error) {
	var renderErr error
	rendered := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		if renderErr != nil {
			return match
		}
		m := placeholderPattern.FindStringSubmatch(match)
		out, err := renderParam(strings.ToLower(m[1]), m[2])
		if err != nil {
			renderErr = err
			return match
		}
		return out
	})
	if renderErr != nil {
		return "", renderErr
	}
	return rendered, nil
}

func renderParam(kind, value string) (string, error) {
	layout, ok := map[string]string{
		"date":     dateLayout,
		"time":     timeLayout,
		"datetime": dateTimeLayout,
		"dateabs":  dateTimeLayout,
	}[kind]
	if !ok {
		return "", fmt.Errorf("invalid parameter type %q", kind)
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return "", fmt.Errorf("invalid %s parameter: %w", kind, err)
	}
	return t.Format(layout), nil
}
