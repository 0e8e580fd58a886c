package strava

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateLimitInfo carries the quota state parsed from Strava's rate limit
// response headers.
type RateLimitInfo struct {
	Limit15Min    int
	Usage15Min    int
	LimitDaily    int
	UsageDaily    int
	IsRateLimited bool

	TimeUntil15MinReset time.Duration
	TimeUntilDailyReset time.Duration
	RecommendedWait     time.Duration
}

// rateLimitBuffer keeps a few requests of headroom before a quota boundary so
// interactive tools are never starved by a running sync.
const rateLimitBuffer = 5

// timeUntilNext15MinWindow calculates the time until the next quarter-hour
// boundary. Strava quotas reset at :00, :15, :30 and :45.
func timeUntilNext15MinWindow(now time.Time) time.Duration {
	minute := now.Minute()
	second := now.Second()
	nano := now.Nanosecond()

	nextBoundary := ((minute / 15) + 1) * 15
	minutesUntil := nextBoundary - minute
	if nextBoundary >= 60 {
		minutesUntil = 60 - minute
	}

	wait := time.Duration(minutesUntil)*time.Minute -
		time.Duration(second)*time.Second -
		time.Duration(nano)*time.Nanosecond

	// Small buffer so we land past the boundary, not on it.
	return wait + 2*time.Second
}

// timeUntilMidnightUTC calculates the time until the daily quota reset.
func timeUntilMidnightUTC(now time.Time) time.Duration {
	nowUTC := now.UTC()
	midnight := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day()+1, 0, 0, 0, 0, time.UTC)
	return midnight.Sub(nowUTC) + 2*time.Second
}

// ShouldWaitForRateLimit returns the recommended wait before the next request,
// zero when none is needed.
func (info *RateLimitInfo) ShouldWaitForRateLimit() time.Duration {
	return info.RecommendedWait
}

// IsApproaching15MinLimit reports whether usage is within the buffer of the
// 15-minute quota.
func (info *RateLimitInfo) IsApproaching15MinLimit() bool {
	if info.Limit15Min == 0 {
		return false
	}
	return info.Usage15Min >= info.Limit15Min-rateLimitBuffer
}

// IsApproachingDailyLimit reports whether usage is within the buffer of the
// daily quota.
func (info *RateLimitInfo) IsApproachingDailyLimit() bool {
	if info.LimitDaily == 0 {
		return false
	}
	return info.UsageDaily >= info.LimitDaily-rateLimitBuffer
}

// minPositive returns the smaller of two values, treating zero as unset.
func minPositive(a, b int) int {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func parsePair(header string) (first, second int) {
	parts := strings.Split(header, ",")
	if len(parts) >= 1 {
		first, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	}
	if len(parts) >= 2 {
		second, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return first, second
}

// parseRateLimitHeaders reads both header families Strava sends: the general
// X-RateLimit-* pair and the more restrictive X-ReadRateLimit-* pair. The
// effective limit is the lower of the two, the effective usage the higher.
// Each header holds "15min,daily".
func parseRateLimitHeaders(headers http.Header, now time.Time) RateLimitInfo {
	var info RateLimitInfo

	generalLimit15, generalLimitDay := parsePair(headers.Get("X-RateLimit-Limit"))
	generalUsage15, generalUsageDay := parsePair(headers.Get("X-RateLimit-Usage"))
	readLimit15, readLimitDay := parsePair(headers.Get("X-ReadRateLimit-Limit"))
	readUsage15, readUsageDay := parsePair(headers.Get("X-ReadRateLimit-Usage"))

	info.Limit15Min = minPositive(generalLimit15, readLimit15)
	info.LimitDaily = minPositive(generalLimitDay, readLimitDay)
	info.Usage15Min = max(generalUsage15, readUsage15)
	info.UsageDaily = max(generalUsageDay, readUsageDay)

	info.TimeUntil15MinReset = timeUntilNext15MinWindow(now)
	info.TimeUntilDailyReset = timeUntilMidnightUTC(now)

	switch {
	case info.Limit15Min > 0 && info.Usage15Min >= info.Limit15Min:
		info.IsRateLimited = true
		info.RecommendedWait = info.TimeUntil15MinReset
	case info.LimitDaily > 0 && info.UsageDaily >= info.LimitDaily:
		info.IsRateLimited = true
		info.RecommendedWait = info.TimeUntilDailyReset
	case info.IsApproaching15MinLimit():
		info.RecommendedWait = info.TimeUntil15MinReset
	case info.IsApproachingDailyLimit():
		info.RecommendedWait = info.TimeUntilDailyReset
	}

	return info
}
