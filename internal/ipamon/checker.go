package ipamon

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/y0ug/ipamon/internal/dispatch"
	"github.com/y0ug/ipamon/internal/listing"
	"github.com/y0ug/ipamon/internal/notifications"
	"github.com/y0ug/ipamon/internal/state"
)

// interChannelDelay spaces out the channel checks within one tick so the
// listing service never sees both requests back to back.
const interChannelDelay = 5 * time.Second

// Checker runs the per-channel check-and-dispatch logic: fetch the listing,
// compare its fingerprint against the stored one, and on a change notify
// every configured target exactly once per fingerprint.
type Checker struct {
	cfg         *Config
	listings    *listing.Client
	store       state.Store
	dispatchers []dispatch.Dispatcher
	notifier    *notifications.Notifier

	// mockFingerprint, when set, replaces the computed fingerprint for the
	// stable channel. Testing override only.
	mockFingerprint string
}

// NewChecker initializes a Checker.
func NewChecker(cfg *Config, store state.Store, dispatchers []dispatch.Dispatcher, notifier *notifications.Notifier) *Checker {
	return &Checker{
		cfg:         cfg,
		listings:    listing.NewClient(cfg.BaseURL),
		store:       store,
		dispatchers: dispatchers,
		notifier:    notifier,
	}
}

// SetMockFingerprint forces the stable channel's fingerprint to the given
// value on every check, used to exercise the dispatch path against a live
// listing without waiting for an upstream change.
func (c *Checker) SetMockFingerprint(fingerprint string) {
	c.mockFingerprint = fingerprint
}

// RunTick checks all channels sequentially. A channel's failure is logged
// and never blocks the remaining channels or the scheduling loop.
func (c *Checker) RunTick(ctx context.Context) {
	for i, channel := range listing.Channels {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interChannelDelay):
			}
		}

		if err := c.CheckChannel(ctx, channel); err != nil {
			logrus.WithError(err).WithField("channel", channel).Error("Channel check failed")
		}
	}
}

// CheckChannel runs one tick for a single channel: fetch the listing,
// compare fingerprints, dispatch on change, persist. State advances only when
// at least one target was successfully notified; on zero successes the
// entire change is retried next tick.
func (c *Checker) CheckChannel(ctx context.Context, channel string) error {
	logger := logrus.WithField("channel", channel)
	logger.Info("Checking channel")

	items, raw, err := c.listings.Fetch(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to fetch %s listing: %w", channel, err)
	}

	fingerprint, err := listing.Fingerprint(raw)
	if err != nil {
		return fmt.Errorf("failed to fingerprint %s listing: %w", channel, err)
	}
	if c.mockFingerprint != "" && channel == listing.ChannelStable {
		fingerprint = c.mockFingerprint
	}

	channelState, err := c.store.ChannelState(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to load %s state: %w", channel, err)
	}

	alreadyNotified := channelState.Dispatched(fingerprint)
	if fingerprint == channelState.LastFingerprint {
		if c.allNotified(alreadyNotified) {
			logger.Info("No changes detected")
			return nil
		}
		// The listing is unchanged but an earlier tick left some targets
		// unnotified; retry just the remainder.
		logger.Info("Unchanged listing with pending targets, retrying failed dispatches")
	}

	latest := listing.Latest(items)
	if latest == nil {
		logger.Info("Listing is empty, nothing to dispatch")
		return nil
	}

	ipaURL := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, channel, latest.Name)
	logger.WithField("ipa_url", ipaURL).Info("New version found")

	notif := dispatch.Notification{
		IPAURL:       ipaURL,
		IsTestflight: channel == listing.ChannelTestflight,
	}
	outcome := dispatch.FanOut(ctx, notif, c.dispatchers, alreadyNotified)

	if len(outcome.Failed) > 0 {
		logger.WithFields(logrus.Fields{
			"failed":    outcome.Failed,
			"succeeded": outcome.Succeeded,
		}).Warn("Some targets failed to dispatch")
		c.notifier.Send("Dispatch failures",
			fmt.Sprintf("Failed to notify %d target(s) about %s", len(outcome.Failed), ipaURL))
	}

	if len(outcome.Succeeded) == 0 {
		// Leaving the state untouched guarantees the whole change is
		// retried on the next tick.
		return fmt.Errorf("all %d targets failed to dispatch for %s", len(outcome.Failed), channel)
	}

	newlyNotified := 0
	for _, target := range outcome.Succeeded {
		if !alreadyNotified[target] {
			newlyNotified++
		}
		channelState.MarkDispatched(fingerprint, target)
	}
	channelState.LastFingerprint = fingerprint

	if err := c.store.SetChannelState(ctx, channel, channelState); err != nil {
		// Better to redispatch next tick than to silently lose history.
		return fmt.Errorf("failed to persist %s state: %w", channel, err)
	}

	logger.WithFields(logrus.Fields{
		"fingerprint": fingerprint,
		"dispatched":  newlyNotified,
	}).Info("Channel state updated")
	if newlyNotified > 0 {
		c.notifier.Send("New IPA dispatched",
			fmt.Sprintf("%s update %s dispatched to %d target(s)", channel, ipaURL, newlyNotified))
	}

	return nil
}

// allNotified reports whether every configured target is in the notified
// set.
func (c *Checker) allNotified(notified map[string]bool) bool {
	for _, d := range c.dispatchers {
		if !notified[d.TargetID()] {
			return false
		}
	}
	return true
}
