package certificate

import "math"

// positionEpoch is 2022-01-01T00:00:00Z. Wallet positions are minutes
// elapsed since this instant.
const positionEpoch int64 = 1640995200

// Position maps a period start (unix seconds) to the wallet position used to
// correlate certificates with external wallet storage. It returns false when
// the instant precedes the epoch, is not minute-aligned, or exceeds the
// int32 ceiling; such periods are not representable and never issue.
func Position(periodStart int64) (int32, bool) {
	elapsed := periodStart - positionEpoch
	if elapsed < 0 {
		return 0, false
	}
	if elapsed%60 != 0 {
		return 0, false
	}
	minutes := elapsed / 60
	if minutes > math.MaxInt32 {
		return 0, false
	}
	return int32(minutes), true
}
