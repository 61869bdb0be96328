package ingest

import (
	"context"
	"log/slog"

	"github.com/roach88/freezewatch/internal/messaging"
)

// Subscription is the part of messaging.Client the subscriber uses.
type Subscription interface {
	Subscribe(ctx context.Context, subject string, handler messaging.Handler) error
}

// Subscribe feeds every message on subject into p. Malformed payloads
// and store failures are logged by the messaging client and dropped.
func Subscribe(ctx context.Context, sub Subscription, subject string, p *Pipeline) error {
	if err := sub.Subscribe(ctx, subject, p.Handle); err != nil {
		return err
	}
	slog.Info("event ingest subscribed", "subject", subject)
	return nil
}
