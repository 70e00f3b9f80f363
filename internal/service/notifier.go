package service

import (
	"context"
	"fmt"

	"note-issuance-engine/internal/core/domain"
	"note-issuance-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

type notifier struct {
	sinks []ports.EventPublisher
	log   zerolog.Logger
}

// NewNotifier creates a notifier fanning out to sinks. With no sinks,
// events are only written to the logger.
func NewNotifier(log zerolog.Logger, sinks ...ports.EventPublisher) ports.Notifier {
	return &notifier{sinks: sinks, log: log}
}

// Notify delivers evt to every sink in order. A failing or panicking sink
// is logged and skipped.
func (n *notifier) Notify(ctx context.Context, evt domain.Event) {
	n.log.Info().
		Str("event_id", evt.ID.String()).
		Str("event_type", string(evt.Type)).
		Msg("event")

	for _, sink := range n.sinks {
		if err := n.deliver(ctx, sink, evt); err != nil {
			n.log.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("event_type", string(evt.Type)).
				Msg("failed to publish event")
		}
	}
}

func (n *notifier) deliver(ctx context.Context, sink ports.EventPublisher, evt domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.Publish(ctx, evt)
}

// journalSink persists events through an EventRepository.
type journalSink struct {
	repo ports.EventRepository
}

// NewJournalSink adapts an event repository into a sink.
func NewJournalSink(repo ports.EventRepository) ports.EventPublisher {
	return &journalSink{repo: repo}
}

func (s *journalSink) Publish(ctx context.Context, evt domain.Event) error {
	return s.repo.Create(ctx, &evt)
}

func (s *journalSink) Name() string {
	return "journal"
}
