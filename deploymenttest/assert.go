package deploymenttest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	deployment "github.com/haowjy/meridian-deploy-go"
)

// CheckWellFormed returns an error describing the first way events violate
// the stream contract: exactly one StreamStart, first; exactly one terminal
// event (StreamEnd or StreamError), last.
func CheckWellFormed(events []deployment.Event) error {
	if len(events) == 0 {
		return fmt.Errorf("stream is empty")
	}
	if events[0].Type != deployment.EventTypeStreamStart {
		return fmt.Errorf("event 0 is %s, want %s", events[0].Type, deployment.EventTypeStreamStart)
	}
	if events[0].GenerationID == "" {
		return fmt.Errorf("%s has no generation id", deployment.EventTypeStreamStart)
	}

	last := len(events) - 1
	if last == 0 || !events[last].IsTerminal() {
		return fmt.Errorf("event %d is %s, want a terminal event", last, events[last].Type)
	}

	for i, ev := range events[1:last] {
		if ev.Type == deployment.EventTypeStreamStart {
			return fmt.Errorf("event %d is a duplicate %s", i+1, ev.Type)
		}
		if ev.IsTerminal() {
			return fmt.Errorf("event %d is terminal (%s) but not last", i+1, ev.Type)
		}
	}

	if events[last].Type == deployment.EventTypeStreamError && events[last].Error == nil {
		return fmt.Errorf("%s carries no error payload", events[last].Type)
	}
	return nil
}

// RequireWellFormed fails the test unless events form a well formed stream.
func RequireWellFormed(t testing.TB, events []deployment.Event) {
	t.Helper()
	require.NoError(t, CheckWellFormed(events), "events: %+v", events)
}

// RequireStreamError fails the test unless events end with a StreamError of kind.
func RequireStreamError(t testing.TB, events []deployment.Event, kind deployment.ErrorKind) {
	t.Helper()
	RequireWellFormed(t, events)
	last := events[len(events)-1]
	require.Equal(t, deployment.EventTypeStreamError, last.Type, "last event")
	require.Equal(t, kind, last.Error.Kind, "error kind (message: %s)", last.Error.Message)
}

// Types returns the event types of events, for compact assertions.
func Types(events []deployment.Event) []deployment.EventType {
	out := make([]deployment.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}
