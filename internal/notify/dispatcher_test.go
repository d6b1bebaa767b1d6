package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/resilience"
)

type fakeSender struct {
	mu       sync.Mutex
	platform domain.Platform
	sends    int
	tests    int
	err      error
}

func (f *fakeSender) Platform() domain.Platform { return f.platform }

func (f *fakeSender) Send(_ context.Context, _ domain.RenderedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	return f.err
}

func (f *fakeSender) SendTest(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tests++
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherSend(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{platform: domain.PlatformFeishu}
	d := NewDispatcher([]ports.Sender{sender}, false, discardLogger())

	msg := domain.RenderedMessage{Platform: domain.PlatformFeishu, Payload: []byte(`{}`)}
	if err := d.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sender.sends != 1 {
		t.Fatalf("sends = %d, want 1", sender.sends)
	}
}

func TestDispatcherSendUnknownPlatform(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, false, discardLogger())
	err := d.Send(context.Background(), domain.RenderedMessage{Platform: domain.PlatformDingtalk})

	var notifyErr *domain.NotifyError
	if !errors.As(err, &notifyErr) {
		t.Fatalf("err = %v, want NotifyError", err)
	}
	if notifyErr.Platform != domain.PlatformDingtalk {
		t.Errorf("platform = %q", notifyErr.Platform)
	}
}

func TestDispatcherDryRunSkipsDelivery(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{platform: domain.PlatformFeishu, err: errors.New("must not be called")}
	d := NewDispatcher([]ports.Sender{sender}, true, discardLogger())

	msg := domain.RenderedMessage{Platform: domain.PlatformFeishu, Payload: []byte(`{}`)}
	if err := d.Send(context.Background(), msg); err != nil {
		t.Fatalf("dry-run send: %v", err)
	}
	if err := d.SendTest(context.Background()); err != nil {
		t.Fatalf("dry-run test: %v", err)
	}
	if sender.sends != 0 || sender.tests != 0 {
		t.Fatalf("sender reached in dry run: sends=%d tests=%d", sender.sends, sender.tests)
	}
}

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{platform: domain.PlatformFeishu, err: &resilience.StatusError{Code: 503}}
	d := NewDispatcher([]ports.Sender{sender}, false, discardLogger())
	d.retry.BaseDelay = 1
	d.retry.MaxDelay = 1

	err := d.Send(context.Background(), domain.RenderedMessage{Platform: domain.PlatformFeishu})
	var notifyErr *domain.NotifyError
	if !errors.As(err, &notifyErr) {
		t.Fatalf("err = %v, want NotifyError", err)
	}
	if sender.sends != 3 {
		t.Fatalf("sends = %d, want 3 attempts", sender.sends)
	}
}

func TestDispatcherPermanentFailureNotRetried(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{platform: domain.PlatformFeishu, err: &resilience.StatusError{Code: 400}}
	d := NewDispatcher([]ports.Sender{sender}, false, discardLogger())
	d.retry.BaseDelay = 1

	if err := d.Send(context.Background(), domain.RenderedMessage{Platform: domain.PlatformFeishu}); err == nil {
		t.Fatal("expected delivery error")
	}
	if sender.sends != 1 {
		t.Fatalf("sends = %d, want 1", sender.sends)
	}
}

func TestDispatcherPlatforms(t *testing.T) {
	t.Parallel()

	d := NewDispatcher([]ports.Sender{
		&fakeSender{platform: domain.PlatformFeishu},
		&fakeSender{platform: domain.PlatformDingtalk},
	}, false, discardLogger())

	platforms := d.Platforms()
	if len(platforms) != 2 || platforms[0] != domain.PlatformFeishu || platforms[1] != domain.PlatformDingtalk {
		t.Fatalf("platforms = %v", platforms)
	}
}
