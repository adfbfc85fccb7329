package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-10-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01", got)

	for _, bad := range []string{"01/10/2026", "2026-13-01", "2026-10-1", "", "tomorrow"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, "date %q should be rejected", bad)
	}
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("18:30")
	require.NoError(t, err)
	assert.Equal(t, "18:30", got)

	got, err = ParseTime("09:05")
	require.NoError(t, err)
	assert.Equal(t, "09:05", got)

	for _, bad := range []string{"6:30 PM", "24:00", "18.30", ""} {
		_, err := ParseTime(bad)
		assert.Error(t, err, "time %q should be rejected", bad)
	}
}
