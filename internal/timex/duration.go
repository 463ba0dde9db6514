// Package timex contains small time helpers shared by the config loaders.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration wraps time.Duration so that configuration sources can express
// intervals either as Go duration strings ("90s", "15m") or as plain
// numbers, which are read as whole minutes.
type Duration struct {
	time.Duration
}

// Minutes builds a Duration of n minutes.
func Minutes(n int) Duration {
	return Duration{Duration: time.Duration(n) * time.Minute}
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Minute))
		return nil
	case string:
		return d.SetValue(value)
	default:
		return errors.New("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// SetValue parses s as a duration string or a number of minutes. It lets
// cleanenv fill Duration fields from environment variables.
func (d *Duration) SetValue(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		d.Duration = 0
		return nil
	}

	if n, err := strconv.Atoi(s); err == nil {
		d.Duration = time.Duration(n) * time.Minute
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
