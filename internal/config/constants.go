package config

import "time"

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const (
	InviteExpiryJobInterval = 15 * time.Minute
	SeatSunsetJobInterval   = time.Hour
	JobRunTimeout           = 30 * time.Second
)

// Rate limiting windows
const (
	AcceptInviteRateWindow = time.Minute
	APIRateWindow          = time.Minute
)

// Onboarding defaults applied when a partner adds a candidate
const (
	DefaultPracticeFrequency    = "3"
	DefaultExamDateOffsetMonths = 2
	FirstEnrollmentBonusSeconds = 300
)
