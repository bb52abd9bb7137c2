// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"empty means unset", "", 0, false},
		{"seconds", "90s", 90 * time.Second, false},
		{"compound", "1h30m", 90 * time.Minute, false},
		{"bare number", "90", 0, true},
		{"negative", "-5s", 0, true},
		{"zero", "0s", 0, true},
		{"words", "ninety seconds", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseDuration("perCommandTimeout", tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDuration) {
					t.Fatalf("parseDuration(%q) = %v, want ErrInvalidDuration", tt.value, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDuration(%q) = %v", tt.value, err)
			}
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestPerCommandTimeoutDuration(t *testing.T) {
	t.Parallel()

	m := &Matrixfile{PerCommandTimeout: "45s"}
	if d, err := m.PerCommandTimeoutDuration(); err != nil || d != 45*time.Second {
		t.Errorf("PerCommandTimeoutDuration = %v, %v", d, err)
	}

	var tc *ToolchainConfig
	if d, err := tc.TimeoutDuration(); err != nil || d != 0 {
		t.Errorf("nil toolchain TimeoutDuration = %v, %v", d, err)
	}
}
