package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
)

// fakeSource replays a fixed message sequence, then cancels the run context.
type fakeSource struct {
	msgs      []kafka.Message
	next      int
	committed []kafka.Message
	cancel    context.CancelFunc
}

func (f *fakeSource) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if f.next >= len(f.msgs) {
		f.cancel()
		return kafka.Message{}, context.Canceled
	}
	m := f.msgs[f.next]
	f.next++
	return m, nil
}

func (f *fakeSource) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeSource) Close() error { return nil }

type fakeInbox struct {
	recorded map[string]bool
}

func (f *fakeInbox) Seen(ctx context.Context, eventID string) (bool, error) {
	return f.recorded[eventID], nil
}

func (f *fakeInbox) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	if f.recorded[eventID] {
		return false, nil
	}
	f.recorded[eventID] = true
	return true, nil
}

func paymentMessage(eventID string, offset int64) kafka.Message {
	return kafka.Message{
		Topic:  "payment.checkout.completed.v1",
		Offset: offset,
		Value:  []byte(`{"reservation_id":"rv-1"}`),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte("payment.checkout.completed.v1")},
		},
	}
}

func runConsumer(t *testing.T, source *fakeSource, box *fakeInbox, handler Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source.cancel = cancel
	c := &Consumer{
		reader:  source,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		inbox:   box,
		handler: handler,
	}
	c.Run(ctx)
}

func TestRunCommitsOnlyAfterHandlerSucceeds(t *testing.T) {
	// The same event is delivered twice; the handler fails the first time.
	source := &fakeSource{msgs: []kafka.Message{
		paymentMessage("evt-1", 0),
		paymentMessage("evt-1", 0),
	}}
	box := &fakeInbox{recorded: map[string]bool{}}

	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls == 1 {
			return errors.New("promotion failed")
		}
		return nil
	}

	runConsumer(t, source, box, handler)

	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2 (failed delivery must be retried)", calls)
	}
	if len(source.committed) != 1 {
		t.Fatalf("committed %d offsets, want 1 (nothing committed until the handler succeeds)", len(source.committed))
	}
	if !box.recorded["evt-1"] {
		t.Fatalf("event not recorded after successful handling")
	}
}

func TestRunSkipsAndCommitsDuplicates(t *testing.T) {
	source := &fakeSource{msgs: []kafka.Message{
		paymentMessage("evt-1", 0),
		paymentMessage("evt-1", 0),
		paymentMessage("evt-2", 1),
	}}
	box := &fakeInbox{recorded: map[string]bool{}}

	var handled []string
	handler := func(ctx context.Context, msg kafka.Message) error {
		handled = append(handled, string(msg.Headers[0].Value))
		return nil
	}

	runConsumer(t, source, box, handler)

	if len(handled) != 2 || handled[0] != "evt-1" || handled[1] != "evt-2" {
		t.Fatalf("handled = %v, want each event exactly once", handled)
	}
	// The duplicate delivery is acknowledged even though it is not handled.
	if len(source.committed) != 3 {
		t.Fatalf("committed %d offsets, want 3", len(source.committed))
	}
}
