package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotAttempted marks a Send that gave up before anything reached the
// outside world, so the failure must not count against the message.
var ErrNotAttempted = errors.New("delivery not attempted")

// Message is what the queue hands to a transport for one delivery attempt.
// ID is stable across attempts so receivers can deduplicate.
type Message struct {
	ID          string
	To          string
	DisplayName string
	Subject     string
	Body        string
	Category    string
}

// Transport hands a rendered message to the outside world. Implementations
// own their timeouts; the queue retries on any returned error.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Func adapts an ordinary function to the Transport interface.
type Func func(ctx context.Context, msg Message) error

func (f Func) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// FormatAddress renders "Name <addr>" when a display name is present.
func FormatAddress(addr, name string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", name, addr)
}
