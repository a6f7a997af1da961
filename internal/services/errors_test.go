package services_test

import (
	"context"
	"errors"
	"testing"

	"qupload/internal/services"
)

func TestWrapCarriesMarkerAndDetail(t *testing.T) {
	t.Parallel()

	base := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "transport", "upload", "request failed", base)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if got := services.Message(err); got != "transport: upload: request failed: connection reset" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestClassification(t *testing.T) {
	t.Parallel()

	transient := services.Wrap(services.ErrTransient, "transport", "upload", "server error", nil)
	rejected := services.Wrap(services.ErrRejected, "transport", "upload", "unsupported payload", nil)
	canceled := services.Wrap(services.ErrCanceled, "uploader", "remove", "", nil)

	if !services.IsTransient(transient) {
		t.Fatal("expected transient classification")
	}
	if services.IsTransient(rejected) || !services.IsTerminal(rejected) {
		t.Fatal("expected terminal classification for rejection")
	}
	if !services.IsCanceled(canceled) || services.IsTransient(canceled) {
		t.Fatal("expected cancellation classification")
	}
	if !services.IsCanceled(context.Canceled) {
		t.Fatal("expected context.Canceled to classify as canceled")
	}
}

func TestUnclassifiedErrorsDefaultToTransient(t *testing.T) {
	t.Parallel()

	if !services.IsTransient(errors.New("something odd")) {
		t.Fatal("unclassified errors should be retryable")
	}
}

func TestTaskContextRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := services.WithTaskID(context.Background(), "task-1")
	ctx = services.WithRequestID(ctx, "req-9")

	if id, ok := services.TaskIDFromContext(ctx); !ok || id != "task-1" {
		t.Fatalf("task id round trip failed: %q %v", id, ok)
	}
	if id, ok := services.RequestIDFromContext(ctx); !ok || id != "req-9" {
		t.Fatalf("request id round trip failed: %q %v", id, ok)
	}
	if _, ok := services.TaskIDFromContext(context.Background()); ok {
		t.Fatal("empty context should not carry a task id")
	}
}
