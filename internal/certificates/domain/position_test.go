package certificate

import (
	"math"
	"testing"
	"time"
)

func unix(t *testing.T, value string) int64 {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed.Unix()
}

func TestPosition(t *testing.T) {
	cases := []struct {
		name   string
		start  int64
		want   int32
		wantOK bool
	}{
		{"epoch", 1640995200, 0, true},
		{"one minute in", 1640995260, 1, true},
		{"one second past a minute", 1640995261, 0, false},
		{"before epoch", 1640995140, 0, false},
		{"int32 ceiling", positionEpoch + int64(math.MaxInt32)*60, math.MaxInt32, true},
		{"one minute past ceiling", positionEpoch + (int64(math.MaxInt32)+1)*60, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Position(tc.start)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("Position(%d) = (%d, %v), want (%d, %v)", tc.start, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestPositionCalendarInstants(t *testing.T) {
	cases := []struct {
		instant string
		want    int32
	}{
		{"2022-01-01T00:00:00Z", 0},
		{"2022-01-01T00:01:00Z", 1},
		{"2023-01-01T00:00:00Z", 525600},
	}
	for _, tc := range cases {
		got, ok := Position(unix(t, tc.instant))
		if !ok || got != tc.want {
			t.Fatalf("Position(%s) = (%d, %v), want (%d, true)", tc.instant, got, ok, tc.want)
		}
	}
}
