package services

import (
	"fmt"
	"strings"

	"github.com/containrrr/shoutrrr"
	"github.com/sirupsen/logrus"

	"github.com/tradersage/bastion/internal/aegis"
	"github.com/tradersage/bastion/internal/logger"
)

// NotifierService fans security alerts out to the configured shoutrrr URLs
// (discord://, slack://, smtp://, ...). Delivery is fire-and-forget.
type NotifierService struct {
	urls []string
	log  *logrus.Entry
}

// NewNotifierService returns a notifier for the given shoutrrr URLs. An empty
// list yields a no-op notifier.
func NewNotifierService(urls []string) *NotifierService {
	return &NotifierService{urls: urls, log: logger.WithComponent("notifier")}
}

// SecurityAlert sends a formatted alert for one engine rejection. Each URL is
// delivered on its own goroutine so the caller never waits on a provider.
func (n *NotifierService) SecurityAlert(ev aegis.EventRecord) {
	if len(n.urls) == 0 {
		return
	}
	msg := formatAlert(ev)
	for _, url := range n.urls {
		go func(u string) {
			if err := shoutrrr.Send(u, msg); err != nil {
				n.log.WithError(err).Warn("send security alert")
			}
		}(url)
	}
}

func formatAlert(ev aegis.EventRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Security alert: %s %s\n\n", ev.Source, ev.Action)
	if ev.Identifier != "" {
		fmt.Fprintf(&b, "Identifier: %s\n", ev.Identifier)
	}
	if ev.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", ev.Context)
	}
	if len(ev.Threats) > 0 {
		fmt.Fprintf(&b, "Threats: %s\n", strings.Join(ev.Threats, ", "))
	}
	if ev.RiskScore > 0 {
		fmt.Fprintf(&b, "Risk score: %d\n", ev.RiskScore)
	}
	if ev.Details != "" {
		fmt.Fprintf(&b, "Details: %s\n", ev.Details)
	}
	return strings.TrimRight(b.String(), "\n")
}
