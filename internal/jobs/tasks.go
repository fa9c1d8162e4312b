package jobs

import (
	"context"
	"time"

	"github.com/prepwise/partner-server-go/internal/config"
)

const (
	InviteExpiryJobName = "invite-expiry"
	SeatSunsetJobName   = "seat-sunset"
)

type InviteExpirer interface {
	ExpireStaleInvites(ctx context.Context, maxAge time.Duration) (int64, error)
}

type SeatSunsetter interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// NewInviteExpiryJob marks invitations pending longer than maxAge as expired.
// Returns nil when maxAge is not positive, which disables expiry.
func NewInviteExpiryJob(expirer InviteExpirer, maxAge time.Duration, locker Locker) *Job {
	if maxAge <= 0 {
		return nil
	}
	return NewJob(InviteExpiryJobName, config.InviteExpiryJobInterval, locker, func(ctx context.Context) (int64, error) {
		return expirer.ExpireStaleInvites(ctx, maxAge)
	})
}

// NewSeatSunsetJob deactivates seat subscriptions past their end date.
func NewSeatSunsetJob(sunsetter SeatSunsetter, locker Locker) *Job {
	return NewJob(SeatSunsetJobName, config.SeatSunsetJobInterval, locker, sunsetter.DeactivateExpired)
}
