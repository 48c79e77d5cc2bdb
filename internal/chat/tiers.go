package chat

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// tier is one endpoint in a fallback chain. advance decides whether a failure
// moves on to the next tier or ends the chain.
type tier[T any] struct {
	name    string
	call    func(ctx context.Context) (T, error)
	advance func(err error) bool
}

func isNotFound(err error) bool { return errors.Is(err, ErrEndpointNotFound) }

func anyFailure(error) bool { return true }

// runTiers tries each tier in order under its own timeout. It returns the first
// success with the tier name, ErrNetworkOrServer when a tier fails in a way that
// does not advance, or ErrTotalFailure when the chain is exhausted.
func runTiers[T any](ctx context.Context, timeout time.Duration, tiers []tier[T], observe func(name string, err error)) (T, string, error) {
	var zero T
	var last error
	for _, t := range tiers {
		if err := ctx.Err(); err != nil {
			return zero, t.name, fmt.Errorf("%s: %w: %w", t.name, ErrNetworkOrServer, err)
		}

		cctx, cancel := context.WithTimeout(ctx, timeout)
		v, err := t.call(cctx)
		cancel()
		if observe != nil {
			observe(t.name, err)
		}
		if err == nil {
			return v, t.name, nil
		}
		if !t.advance(err) {
			return zero, t.name, fmt.Errorf("%s: %w: %w", t.name, ErrNetworkOrServer, err)
		}
		last = err
	}
	if last == nil {
		last = errors.New("no tiers configured")
	}
	return zero, "", fmt.Errorf("%w: %w", ErrTotalFailure, last)
}

func (e *Engine) fetchTiers() []tier[[]Message] {
	key := e.key
	return []tier[[]Message]{
		{
			name:    "primary",
			call:    func(ctx context.Context) ([]Message, error) { return e.backend.FetchConversation(ctx, key) },
			advance: isNotFound,
		},
		{
			name:    "secondary",
			call:    func(ctx context.Context) ([]Message, error) { return e.backend.FetchConversationSecondary(ctx, key) },
			advance: anyFailure,
		},
		{
			// the legacy route only knows the therapist; the backend fills the patient itself
			name: "legacy",
			call: func(ctx context.Context) ([]Message, error) {
				return e.backend.FetchMessagesLegacy(ctx, key.TherapistID)
			},
			advance: anyFailure,
		},
	}
}

func (e *Engine) sendTiers(req SendRequest) []tier[*Message] {
	return []tier[*Message]{
		{
			name:    "primary",
			call:    func(ctx context.Context) (*Message, error) { return e.backend.SendMessage(ctx, req) },
			advance: isNotFound,
		},
		{
			name: "legacy",
			call: func(ctx context.Context) (*Message, error) {
				return e.backend.SendMessageLegacy(ctx, req.Content, req.TherapistID)
			},
			advance: anyFailure,
		},
	}
}
