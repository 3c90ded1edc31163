// Package directlink resolves shared-file URLs issued by a cloud storage
// provider into direct download links, by delegating to whichever resolution
// backend could be found at startup and normalizing the backend's result.
package directlink

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Interface defines the interface for a share URL resolver.
type Interface interface {
	Resolve(ctx context.Context, shareURL string) (Result, error)
}

// Resolver resolves share URLs through a fixed backend Handle.
type Resolver struct {
	handle *Handle
}

var _ Interface = &Resolver{} // Resolver implements Interface

// New creates a Resolver that delegates to the given handle. A nil handle is
// allowed, in which case every resolve fails with ErrUnavailable.
func New(handle *Handle) *Resolver {
	return &Resolver{handle: handle}
}

// Handle returns the backend handle used by r.
func (r *Resolver) Handle() *Handle {
	return r.handle
}

// Resolve asks the backend for the direct link behind shareURL and
// normalizes its answer. The backend is invoked at most once.
func (r *Resolver) Resolve(ctx context.Context, shareURL string) (Result, error) {
	span := trace.SpanFromContext(ctx)

	if shareURL == "" {
		return Result{}, ErrInvalidInput
	}
	if !r.handle.Available() {
		span.SetAttributes(attribute.String("error", ErrUnavailable.Error()))
		return Result{}, ErrUnavailable
	}

	span.SetAttributes(
		attribute.String("directlink.strategy", r.handle.Strategy()),
		attribute.String("directlink.convention", r.handle.Convention().String()),
	)

	v, err := r.handle.invoke(ctx, shareURL)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return Result{}, err
	}

	span.SetAttributes(attribute.String("directlink.result_kind", v.Kind().String()))
	result, err := Normalize(v)
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
	}
	return result, err
}
