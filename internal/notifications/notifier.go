package notifications

import (
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"
	"github.com/sirupsen/logrus"
)

// Notifier sends operator-facing notices via Shoutrrr. It is a side channel
// for humans watching the daemon; the dispatch core's success and failure
// accounting never depends on it.
type Notifier struct {
	sr *router.ServiceRouter
}

// NewNotifier initializes a Notifier with the provided Shoutrrr URLs.
// With no URLs configured it returns nil; a nil Notifier is safe to use and
// sends nothing.
func NewNotifier(urls []string) (*Notifier, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	sr, err := router.New(nil, urls...)
	if err != nil {
		return nil, err
	}
	return &Notifier{sr: sr}, nil
}

// Send sends a notice to all configured services. Delivery failures are
// logged and otherwise ignored.
func (n *Notifier) Send(title, message string) {
	if n == nil || n.sr == nil {
		return
	}

	params := types.Params{
		"title": title,
	}
	for _, err := range n.sr.Send(message, &params) {
		if err != nil {
			logrus.WithError(err).Error("Failed to send operator notification")
		}
	}
}
