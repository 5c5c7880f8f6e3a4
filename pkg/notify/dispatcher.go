package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/common/kafka"
	"github.com/trialscout/platform/pkg/common/logger"
)

// MatchMarker is the slice of the matching service the dispatcher needs.
type MatchMarker interface {
	MarkNotified(ctx context.Context, matchID uuid.UUID) error
}

// Sender delivers the notification to the patient. Implementations may
// email, push, or just log; delivery channels are configured per
// deployment.
type Sender interface {
	Send(ctx context.Context, patientID, matchID string) error
}

// LogSender writes the notification to the service log. It is the
// default channel until a real provider is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, patientID, matchID string) error {
	logger.Log.WithFields(map[string]interface{}{
		"patient_id": patientID,
		"match_id":   matchID,
	}).Info("Trial match notification")
	return nil
}

// Dispatcher consumes match.created events and turns each one into a
// patient notification, then flips the match's notification status.
type Dispatcher struct {
	marker MatchMarker
	sender Sender
}

func NewDispatcher(marker MatchMarker, sender Sender) *Dispatcher {
	if sender == nil {
		sender = LogSender{}
	}
	return &Dispatcher{marker: marker, sender: sender}
}

// Handle processes one event. Returning an error leaves the message
// uncommitted so it is redelivered.
func (d *Dispatcher) Handle(ctx context.Context, event kafka.Event) error {
	if event.Type != "match.created" {
		return nil
	}

	matchID, ok := event.Data["match_id"].(string)
	if !ok || matchID == "" {
		logger.Log.WithField("event_id", event.ID).Warn("match.created event missing match_id, dropping")
		return nil
	}
	patientID, _ := event.Data["patient_id"].(string)

	id, err := uuid.Parse(matchID)
	if err != nil {
		logger.Log.WithField("match_id", matchID).Warn("unparseable match_id, dropping")
		return nil
	}

	if err := d.sender.Send(ctx, patientID, matchID); err != nil {
		return fmt.Errorf("sending notification for match %s: %w", matchID, err)
	}

	if err := d.marker.MarkNotified(ctx, id); err != nil {
		// A vanished match is not worth a redelivery loop.
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			logger.Log.WithField("match_id", matchID).Warn("match no longer exists, dropping notification")
			return nil
		}
		return err
	}
	return nil
}

// Run blocks consuming the topic until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context, consumer *kafka.Consumer) error {
	return consumer.Consume(ctx, d.Handle)
}
