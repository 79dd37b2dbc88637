package dispatch

import (
	"context"

	"golang.org/x/time/rate"
)

// Notification carries what downstream automation needs to act on a new
// artifact: where to fetch it and which release track it belongs to.
type Notification struct {
	IPAURL       string
	IsTestflight bool
}

// Dispatcher defines the methods any downstream target client must implement.
type Dispatcher interface {
	// Dispatch delivers one notification. A nil return means the target
	// explicitly acknowledged the delivery.
	Dispatch(ctx context.Context, notif Notification) error
	// SetRateLimiter sets the rate limiter for the client.
	SetRateLimiter(limiter *RateLimiter)
	// TargetID returns the stable identifier recorded in dispatch history.
	TargetID() string
}

type RateLimiter struct {
	Limiter *rate.Limiter
	Burst   int
	Rate    rate.Limit // Requests per second
}
