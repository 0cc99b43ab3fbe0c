package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"syscall"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_RunnerFinishes(t *testing.T) {
	wantErr := errors.New("boom")
	shutdownCalled := false

	err := run(context.Background(), make(chan os.Signal), discardLogger(), time.Second,
		func(ctx context.Context) error { return wantErr },
		func(ctx context.Context) error { shutdownCalled = true; return nil },
	)

	if !errors.Is(err, wantErr) {
		t.Errorf("expected runner error, got %v", err)
	}
	if shutdownCalled {
		t.Error("shutdown should not run when the runner exits by itself")
	}
}

func TestRun_SignalTriggersShutdown(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	sigChan <- syscall.SIGTERM
	shutdownCalled := make(chan struct{})

	err := run(context.Background(), sigChan, discardLogger(), time.Second,
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		func(ctx context.Context) error {
			close(shutdownCalled)
			return nil
		},
	)

	if err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
	select {
	case <-shutdownCalled:
	default:
		t.Error("expected shutdown to be called")
	}
}

func TestRun_ContextCancelTriggersShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stopped := make(chan struct{})

	err := run(ctx, make(chan os.Signal), discardLogger(), time.Second,
		func(ctx context.Context) error {
			<-stopped
			return nil
		},
		func(ctx context.Context) error { close(stopped); return nil },
	)

	if err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Error("expected shutdown on cancellation")
	}
}

func TestRun_ShutdownTimeout(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	sigChan <- syscall.SIGINT
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := run(context.Background(), sigChan, discardLogger(), 50*time.Millisecond,
		func(ctx context.Context) error {
			<-release
			return nil
		},
		func(ctx context.Context) error { return errors.New("stuck") },
	)

	if err != nil {
		t.Errorf("expected nil after timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected to give up after the timeout, took %v", elapsed)
	}
}

func TestRun_RunnerErrorAfterShutdown(t *testing.T) {
	sigChan := make(chan os.Signal, 1)
	sigChan <- syscall.SIGTERM
	wantErr := errors.New("flush failed")

	err := run(context.Background(), sigChan, discardLogger(), time.Second,
		func(ctx context.Context) error {
			<-ctx.Done()
			return wantErr
		},
		func(ctx context.Context) error { return nil },
	)

	if !errors.Is(err, wantErr) {
		t.Errorf("expected runner error, got %v", err)
	}
}
