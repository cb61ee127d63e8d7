package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey_Representations(t *testing.T) {
	loc := time.FixedZone("X", 5*3600)
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"canonical", "2024-01-05", "2024-01-05"},
		{"iso with time", "2024-01-05T23:59:59Z", "2024-01-05"},
		{"iso with offset", "2024-01-05T01:00:00+05:00", "2024-01-05"},
		{"space separated", "2024-01-05 08:30:00", "2024-01-05"},
		{"padded", "  2024-01-05  ", "2024-01-05"},
		{"long form", "March 3, 2021", "2021-03-03"},
		{"unpadded", "2024-1-5", "2024-01-05"},
		{"time value", time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC), "2024-02-01"},
		{"time value in zone", time.Date(2024, 2, 1, 2, 0, 0, 0, loc), "2024-01-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Key(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKey_SameDayDifferentTimesShareKey(t *testing.T) {
	a, err := Key("2024-03-01T09:00:00Z")
	require.NoError(t, err)
	b, err := Key("2024-03-01 17:45")
	require.NoError(t, err)
	c, err := Key(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, b, c)
}

func TestKey_Idempotent(t *testing.T) {
	for _, in := range []string{"1999-12-31", "2024-02-29", "2024-01-05T10:00:00Z", "March 3, 2021"} {
		once, err := Key(in)
		require.NoError(t, err)
		twice, err := Key(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, in)
	}
}

func TestKey_Unparsable(t *testing.T) {
	var nilTime *time.Time
	for _, in := range []any{"", "sometime last spring", "2024-13-45", nil, time.Time{}, nilTime} {
		_, err := Key(in)
		assert.ErrorIs(t, err, ErrUnparsable, "%v", in)
	}
}

func TestParse_Chronological(t *testing.T) {
	a, err := Parse("2023-12-31")
	require.NoError(t, err)
	b, err := Parse("2024-01-01")
	require.NoError(t, err)
	assert.True(t, a.Before(b))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "15 OCTOBER 2021", Label("2021-10-15"))
	assert.Equal(t, "1 JANUARY 2024", Label("2024-01-01"))
	assert.Equal(t, "garbage", Label("garbage"))
}
