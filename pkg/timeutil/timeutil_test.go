package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withLocation(t *testing.T, loc *time.Location) {
	t.Helper()
	prev := Location()
	SetLocation(loc)
	t.Cleanup(func() { SetLocation(prev) })
}

func TestFormatting_UsesOfficeZone(t *testing.T) {
	withLocation(t, time.FixedZone("UTC+5", 5*60*60))

	// 23:30 UTC is already the next morning in UTC+5.
	instant := time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2024-01-16", FormatDateStr(instant))
	assert.Equal(t, "04:30", ToLocal(instant).Format(FormatTime))
}

func TestHumanTimestamp(t *testing.T) {
	withLocation(t, time.UTC)

	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "3/5/2024, 2:07:09 PM", HumanTimestamp(ts))
}

func TestISOTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 9, 123_000_000, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-03-05T13:07:09.123Z", ISOTimestamp(ts))
}

func TestParseDate(t *testing.T) {
	withLocation(t, time.UTC)

	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, 29, d.Day())

	_, err = ParseDate("2024-02-30")
	assert.Error(t, err)

	_, err = ParseDate("15.01.2024")
	assert.Error(t, err)
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = LoadLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = LoadLocation("Not/AZone")
	assert.Error(t, err)
}

