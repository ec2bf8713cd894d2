package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/notifyhub/mailqueue/internal/ratelimiter"
	"github.com/notifyhub/mailqueue/internal/transport"
)

var welcome = transport.Message{
	ID:          "3f2b8a4e-5c1d-4f6a-9b7e-2d8c0e1a4b6f",
	To:          "ada@example.com",
	DisplayName: "Ada Lovelace",
	Subject:     "Welcome",
	Body:        "<p>hi</p>",
	Category:    "enrollment_confirmation",
}

func TestFormatAddress(t *testing.T) {
	if got := transport.FormatAddress("ada@example.com", ""); got != "ada@example.com" {
		t.Fatalf("unexpected bare address %q", got)
	}
	if got := transport.FormatAddress("ada@example.com", "Ada Lovelace"); got != "Ada Lovelace <ada@example.com>" {
		t.Fatalf("unexpected named address %q", got)
	}
}

func TestWebhookTransport_Send(t *testing.T) {
	var got transport.WebhookRequest
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("X-Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := transport.NewWebhookTransport(srv.URL, time.Second)
	if err := tr.Send(context.Background(), welcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != welcome.ID || got.MessageID != welcome.ID {
		t.Fatalf("expected message id to travel as idempotency key, got %q / %q", key, got.MessageID)
	}
	if got.To != "Ada Lovelace <ada@example.com>" || got.HTML != welcome.Body {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWebhookTransport_Non2xxIsError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusServiceUnavailable} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		err := transport.NewWebhookTransport(srv.URL, time.Second).Send(context.Background(), welcome)
		srv.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
	}
}

func TestThrottled_WaitsPerCategory(t *testing.T) {
	calls := 0
	next := transport.Func(func(context.Context, transport.Message) error {
		calls++
		return nil
	})
	tr := transport.NewThrottled(next, ratelimiter.New(1))

	ctx := context.Background()
	if err := tr.Send(ctx, welcome); err != nil {
		t.Fatal(err)
	}

	// The bucket for this category is now empty; another category is not.
	other := welcome
	other.Category = "progress_reminder"
	if err := tr.Send(ctx, other); err != nil {
		t.Fatal(err)
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := tr.Send(short, welcome)
	if err == nil {
		t.Fatal("expected the second send in the same category to be throttled")
	}
	if !errors.Is(err, transport.ErrNotAttempted) {
		t.Fatalf("a throttled send must report ErrNotAttempted, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 deliveries, got %d", calls)
	}
}

func TestSMTPTransport_UnreachableRelay(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	_, port, _ := net.SplitHostPort(srv.Listener.Addr().String())
	srv.Close()
	portNum, _ := strconv.Atoi(port)

	tr := transport.NewSMTPTransport(transport.SMTPConfig{
		Host:    "127.0.0.1",
		Port:    portNum,
		From:    "no-reply@example.com",
		Timeout: time.Second,
	})
	err := tr.Send(context.Background(), welcome)
	if err == nil {
		t.Fatal("expected an error from a closed port")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("a refused connection should fail before the timeout")
	}
}
