package directlink

import (
	"context"

	"github.com/PuerkitoBio/purell"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// coalesceFlags defines how share URLs are normalized to build the
// coalescing key. Only spellings that name the same resource are merged:
// scheme and host case, default ports and escaping. Paths, queries and
// fragments are compared as given.
//
// See https://godoc.org/github.com/PuerkitoBio/purell#NormalizationFlags
const coalesceFlags = purell.FlagsSafe

// SingleflightResolver is an Interface implementation that ensures
// concurrent requests to resolve the same share URL result in a single call
// to the backend. Nothing is retained once the call completes.
type SingleflightResolver struct {
	group    *singleflight.Group
	resolver Interface
}

// NewSingleflightResolver creates a new SingleflightResolver.
func NewSingleflightResolver(resolver Interface) *SingleflightResolver {
	return &SingleflightResolver{
		group:    &singleflight.Group{},
		resolver: resolver,
	}
}

// Resolve resolves a share URL, coalescing concurrent calls for equivalent
// URLs.
//
// The shared backend call does not inherit any single caller's
// cancellation, so one client going away does not fail the others. A caller
// whose own ctx is done stops waiting and gets ctx.Err().
func (r *SingleflightResolver) Resolve(ctx context.Context, shareURL string) (Result, error) {
	if shareURL == "" {
		return Result{}, ErrInvalidInput
	}

	span := trace.SpanFromContext(ctx)

	ch := r.group.DoChan(coalesceKey(shareURL), func() (interface{}, error) {
		return r.resolver.Resolve(context.WithoutCancel(ctx), shareURL)
	})

	select {
	case <-ctx.Done():
		span.SetAttributes(attribute.String("error", ctx.Err().Error()))
		return Result{}, ctx.Err()
	case res := <-ch:
		span.SetAttributes(attribute.Bool("directlink.request_coalesced", res.Shared))
		if res.Err != nil {
			span.SetAttributes(attribute.String("error", res.Err.Error()))
		}
		return res.Val.(Result), res.Err
	}
}

func coalesceKey(shareURL string) string {
	key, err := purell.NormalizeURLString(shareURL, coalesceFlags)
	if err != nil {
		return shareURL
	}
	return key
}
