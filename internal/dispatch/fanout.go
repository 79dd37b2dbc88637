package dispatch

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// maxConcurrentDispatches bounds how many targets are notified in parallel
// within one fan-out.
const maxConcurrentDispatches = 4

// Outcome records which targets acknowledged a notification and which did
// not, for one fan-out. Both slices are sorted.
type Outcome struct {
	Succeeded []string
	Failed    []string
}

// FanOut notifies every dispatcher about notif, skipping targets that are
// already recorded in alreadyNotified for the current fingerprint. Skipped
// targets count as succeeded without a network call, which keeps restarts
// after partial failures from triggering downstream workflows twice.
//
// Each remaining target is attempted independently; one target's failure
// never short-circuits the rest, and partial failure is reported through the
// Outcome rather than an error.
func FanOut(ctx context.Context, notif Notification, dispatchers []Dispatcher, alreadyNotified map[string]bool) Outcome {
	var (
		outcome Outcome
		mu      sync.Mutex
		wg      sync.WaitGroup
	)

	sem := semaphore.NewWeighted(maxConcurrentDispatches)

	for _, d := range dispatchers {
		target := d.TargetID()

		if alreadyNotified[target] {
			logrus.WithField("target", target).Info("Skipping target, already notified for current fingerprint")
			mu.Lock()
			outcome.Succeeded = append(outcome.Succeeded, target)
			mu.Unlock()
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			logrus.WithError(err).WithField("target", target).Error("Failed to acquire dispatch slot")
			mu.Lock()
			outcome.Failed = append(outcome.Failed, target)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(d Dispatcher, target string) {
			defer wg.Done()
			defer sem.Release(1)

			logger := logrus.WithFields(logrus.Fields{
				"target":  target,
				"ipa_url": notif.IPAURL,
			})

			err := d.Dispatch(ctx, notif)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.WithError(err).Error("Failed to dispatch notification")
				outcome.Failed = append(outcome.Failed, target)
				return
			}
			logger.Info("Notification dispatched successfully")
			outcome.Succeeded = append(outcome.Succeeded, target)
		}(d, target)
	}

	wg.Wait()

	sort.Strings(outcome.Succeeded)
	sort.Strings(outcome.Failed)
	return outcome
}
