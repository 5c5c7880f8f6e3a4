package notify

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/trialscout/platform/pkg/common/apperrors"
	"github.com/trialscout/platform/pkg/common/kafka"
	"github.com/trialscout/platform/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init("notify-test")
	os.Exit(m.Run())
}

type fakeMarker struct {
	marked []uuid.UUID
	err    error
}

func (f *fakeMarker) MarkNotified(ctx context.Context, matchID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.marked = append(f.marked, matchID)
	return nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) Send(ctx context.Context, patientID, matchID string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, matchID)
	return nil
}

func matchEvent(matchID string) kafka.Event {
	return kafka.Event{
		ID:   uuid.New().String(),
		Type: "match.created",
		Data: map[string]interface{}{"match_id": matchID, "patient_id": "patient-1"},
	}
}

func TestHandleMarksMatchNotified(t *testing.T) {
	marker := &fakeMarker{}
	sender := &fakeSender{}
	d := NewDispatcher(marker, sender)

	id := uuid.New()
	if err := d.Handle(context.Background(), matchEvent(id.String())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != id.String() {
		t.Fatalf("notification not sent: %+v", sender.sent)
	}
	if len(marker.marked) != 1 || marker.marked[0] != id {
		t.Fatalf("match not marked: %+v", marker.marked)
	}
}

func TestHandleIgnoresOtherEventTypes(t *testing.T) {
	marker := &fakeMarker{}
	d := NewDispatcher(marker, &fakeSender{})

	event := matchEvent(uuid.New().String())
	event.Type = "consent.updated"
	if err := d.Handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(marker.marked) != 0 {
		t.Fatal("consent event should not trigger a notification")
	}
}

func TestHandleDropsMalformedEvents(t *testing.T) {
	marker := &fakeMarker{}
	d := NewDispatcher(marker, &fakeSender{})

	event := matchEvent("")
	if err := d.Handle(context.Background(), event); err != nil {
		t.Fatalf("malformed events must be dropped, not redelivered: %v", err)
	}

	event = matchEvent("not-a-uuid")
	if err := d.Handle(context.Background(), event); err != nil {
		t.Fatalf("unparseable match_id must be dropped: %v", err)
	}
	if len(marker.marked) != 0 {
		t.Fatal("nothing should be marked for malformed events")
	}
}

func TestHandleReturnsErrorForRedelivery(t *testing.T) {
	d := NewDispatcher(&fakeMarker{}, &fakeSender{err: errors.New("smtp down")})
	if err := d.Handle(context.Background(), matchEvent(uuid.New().String())); err == nil {
		t.Fatal("send failure should propagate so the message is redelivered")
	}
}

func TestHandleDropsVanishedMatches(t *testing.T) {
	marker := &fakeMarker{err: apperrors.New(apperrors.KindNotFound, "match not found")}
	d := NewDispatcher(marker, &fakeSender{})
	if err := d.Handle(context.Background(), matchEvent(uuid.New().String())); err != nil {
		t.Fatalf("missing match should not loop redelivery: %v", err)
	}
}
