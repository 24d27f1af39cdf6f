package workflow

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/mpms/config"
	"github.com/mmdatafocus/mpms/utils"
)

type recordingPublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []config.ChangeMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg config.ChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failures > 0 {
		p.failures--
		return errors.New("unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *recordingPublisher) snapshot() (int, []config.ChangeMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls, append([]config.ChangeMessage(nil), p.sent...)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestDispatcherRetriesUntilPublished(t *testing.T) {
	pub := &recordingPublisher{failures: 2}
	d := NewDispatcher(pub, quietLogger(), 4)
	d.InitialBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	if !d.Enqueue(config.ChangeMessage{ReferenceId: 7, ReferenceType: string(ReferenceVendor), Action: string(ActionCreate)}) {
		t.Fatalf("expected message to be queued")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, sent := pub.snapshot()
		if len(sent) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("message was not published")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	d.Wait()

	calls, sent := pub.snapshot()
	if calls != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", calls)
	}
	if sent[0].ReferenceId != 7 {
		t.Fatalf("unexpected message %+v", sent[0])
	}
}

func TestWaitPublishesQueuedMessages(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, quietLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	for i := 1; i <= 3; i++ {
		d.Enqueue(config.ChangeMessage{ReferenceId: i})
	}
	cancel()
	d.Wait()

	if _, sent := pub.snapshot(); len(sent) != 3 {
		t.Fatalf("expected all queued messages before Wait returned, got %d", len(sent))
	}
}

func TestDispatcherGivesUpAfterMaxAttempts(t *testing.T) {
	pub := &recordingPublisher{failures: 100}
	d := NewDispatcher(pub, quietLogger(), 1)
	d.InitialBackoff = time.Millisecond
	d.MaxAttempts = 3

	d.publish(context.Background(), config.ChangeMessage{ReferenceId: 1})

	calls, sent := pub.snapshot()
	if calls != 3 || len(sent) != 0 {
		t.Fatalf("expected 3 failed attempts, got calls=%d sent=%d", calls, len(sent))
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	d := NewDispatcher(&recordingPublisher{}, quietLogger(), 1)
	if !d.Enqueue(config.ChangeMessage{ReferenceId: 1}) {
		t.Fatalf("first message should fit")
	}
	if d.Enqueue(config.ChangeMessage{ReferenceId: 2}) {
		t.Fatalf("second message should be dropped")
	}
}

func TestNewChangeUsesContext(t *testing.T) {
	ctx := utils.SetUserIdInContext(context.Background(), 42)
	ctx = utils.SetCorrelationIdInContext(ctx, "cid-1")

	msg := NewChange(ctx, ReferenceGuest, ActionUpdate, 3, map[string]string{"guest_name": "ACME"})
	if msg.UserId != 42 || msg.CorrelationId != "cid-1" {
		t.Fatalf("context values not carried: %+v", msg)
	}
	if msg.ReferenceType != "guest" || msg.Action != "update" || msg.ReferenceId != 3 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if string(msg.NewObj) != `{"guest_name":"ACME"}` {
		t.Fatalf("unexpected payload %s", msg.NewObj)
	}

	anon := NewChange(context.Background(), ReferenceVendor, ActionDelete, 1, nil)
	if anon.CorrelationId == "" || anon.NewObj != nil {
		t.Fatalf("expected generated correlation id and no payload: %+v", anon)
	}
}
