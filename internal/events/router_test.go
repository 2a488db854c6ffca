package events

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestRouteDispatchesByIdentifier(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	var got string
	r.Handle(EventNewAppThreshold, func(_ context.Context, appID string) error {
		got = appID
		return nil
	})

	if err := r.Route(context.Background(), EventNewAppThreshold, "com.new.app"); err != nil {
		t.Fatal(err)
	}
	if got != "com.new.app" {
		t.Fatalf("handler received %q", got)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	r.Handle(EventDailyThreshold, func(context.Context, string) error {
		t.Fatal("wrong handler invoked")
		return nil
	})

	if err := r.Route(context.Background(), "weekly-threshold", "A"); err != nil {
		t.Fatalf("unknown events must not error: %v", err)
	}
}

func TestHandlerErrorSurfaces(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	want := errors.New("handler failed")
	r.Handle(EventUsageThreshold, func(context.Context, string) error { return want })

	if err := r.Route(context.Background(), EventUsageThreshold, "A"); !errors.Is(err, want) {
		t.Fatalf("err = %v, want handler error", err)
	}
}

func TestHandleReplacesRegistration(t *testing.T) {
	r := NewRouter(zerolog.Nop())
	calls := []string{}
	r.Handle(EventDailyThreshold, func(context.Context, string) error {
		calls = append(calls, "old")
		return nil
	})
	r.Handle(EventDailyThreshold, func(context.Context, string) error {
		calls = append(calls, "new")
		return nil
	})

	if err := r.Route(context.Background(), EventDailyThreshold, "A"); err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0] != "new" {
		t.Fatalf("calls = %v, want only the replacement handler", calls)
	}
}
