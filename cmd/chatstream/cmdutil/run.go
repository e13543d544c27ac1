package cmdutil

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
)

// Service is a long running server.
type Service struct {
	Name     string
	Run      func() error
	Shutdown func() error
}

// RunServices starts every service and blocks until one fails or ctx is
// cancelled by SIGINT or SIGTERM. Every service is shut down before it
// returns.
func RunServices(ctx context.Context, log *slog.Logger, services ...Service) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, len(services))
	for _, svc := range services {
		go func() {
			if err := svc.Run(); err != nil {
				errChan <- &ServiceError{Name: svc.Name, Err: err}
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		log.Info("shutting down", "cause", context.Cause(ctx))
	}

	for _, svc := range services {
		if err := svc.Shutdown(); err != nil {
			log.Warn("shutdown failed", "service", svc.Name, "error", err)
		}
	}
	return runErr
}

// ServiceError names the service that stopped.
type ServiceError struct {
	Name string
	Err  error
}

func (e *ServiceError) Error() string { return e.Name + " error: " + e.Err.Error() }

func (e *ServiceError) Unwrap() error { return e.Err }
