package dateutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseReceiptDateTime(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		ok         bool
		expectedY  int
		expectedM  time.Month
		expectedD  int
		expectedHr int
	}{
		{"ISO with time", "2024-03-15T18:42:07", true, 2024, time.March, 15, 18},
		{"ISO with trailing Z", "2024-03-15T18:42:07Z", true, 2024, time.March, 15, 18},
		{"ISO space-separated", "2024-03-15 18:42:07", true, 2024, time.March, 15, 18},
		{"German date", "15.03.2024", true, 2024, time.March, 15, 12},
		{"German two-digit year", "15.03.24", true, 2024, time.March, 15, 12},
		{"ISO date only", "2024-03-15", true, 2024, time.March, 15, 12},
		{"Dashed EU", "15-03-2024", true, 2024, time.March, 15, 12},
		{"Slashed ISO", "2024/03/15", true, 2024, time.March, 15, 12},
		{"Whitespace noise", "  15.03.2024  ", true, 2024, time.March, 15, 12},
		{"Empty", "", false, 0, 0, 0, 0},
		{"Garbage", "not a date", false, 0, 0, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, ok := ParseReceiptDateTime(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.expectedY, parsed.Year())
				assert.Equal(t, tc.expectedM, parsed.Month())
				assert.Equal(t, tc.expectedD, parsed.Day())
				assert.Equal(t, tc.expectedHr, parsed.Hour())
			}
		})
	}
}

func TestDateOnlyDefaultsToNoon(t *testing.T) {
	parsed, ok := ParseReceiptDateTime("01.12.2023")
	assert.True(t, ok)
	assert.Equal(t, 12, parsed.Hour())
	assert.Equal(t, 0, parsed.Minute())
	assert.Equal(t, 0, parsed.Second())
}
