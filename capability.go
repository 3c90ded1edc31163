package directlink

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// A backend exposes exactly one of the following calling conventions. When
// it implements several, the first in this list wins.

// DirectLinker resolves a share URL via a "get direct link" operation.
type DirectLinker interface {
	GetDownloadLink(ctx context.Context, shareURL string) (Value, error)
}

// Downloader resolves a share URL via a generic "download" operation.
type Downloader interface {
	Download(ctx context.Context, shareURL string) (Value, error)
}

// InfoGetter resolves a share URL via a "get info" operation.
type InfoGetter interface {
	GetInfo(ctx context.Context, shareURL string) (Value, error)
}

// Caller is a backend that is itself invocable with the share URL.
type Caller interface {
	Call(ctx context.Context, shareURL string) (Value, error)
}

// Func adapts an ordinary function to the Caller convention.
type Func func(ctx context.Context, shareURL string) (Value, error)

// Call calls f(ctx, shareURL).
func (f Func) Call(ctx context.Context, shareURL string) (Value, error) {
	return f(ctx, shareURL)
}

// Convention identifies how a Handle invokes its backend.
type Convention int

// Calling conventions, in probe order.
const (
	ConventionNone Convention = iota
	ConventionGetDownloadLink
	ConventionDownload
	ConventionGetInfo
	ConventionCall
)

func (c Convention) String() string {
	switch c {
	case ConventionGetDownloadLink:
		return "get_download_link"
	case ConventionDownload:
		return "download"
	case ConventionGetInfo:
		return "get_info"
	case ConventionCall:
		return "call"
	default:
		return "none"
	}
}

func conventionOf(backend any) Convention {
	switch backend.(type) {
	case DirectLinker:
		return ConventionGetDownloadLink
	case Downloader:
		return ConventionDownload
	case InfoGetter:
		return ConventionGetInfo
	case Caller:
		return ConventionCall
	default:
		return ConventionNone
	}
}

// Handle is an immutable reference to a resolution backend along with the
// calling convention used to invoke it. A nil *Handle means no backend is
// available; all methods are safe to call on a nil Handle.
type Handle struct {
	strategy   string
	convention Convention
	backend    any
}

// NewHandle wraps backend, which must implement at least one of DirectLinker,
// Downloader, InfoGetter or Caller.
func NewHandle(strategy string, backend any) (*Handle, error) {
	convention := conventionOf(backend)
	if convention == ConventionNone {
		return nil, fmt.Errorf("%s: %T exposes no supported calling convention", strategy, backend)
	}
	return &Handle{
		strategy:   strategy,
		convention: convention,
		backend:    backend,
	}, nil
}

// Available reports whether h refers to a backend.
func (h *Handle) Available() bool {
	return h != nil
}

// Strategy returns the name of the strategy that produced h.
func (h *Handle) Strategy() string {
	if h == nil {
		return ""
	}
	return h.strategy
}

// Convention returns the calling convention h uses.
func (h *Handle) Convention() Convention {
	if h == nil {
		return ConventionNone
	}
	return h.convention
}

// invoke calls the backend exactly once. Errors and panics raised by the
// backend are returned as a *DelegateError.
func (h *Handle) invoke(ctx context.Context, shareURL string) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = Value{}, &DelegateError{Convention: h.convention, Err: recoveredFault(r)}
		}
	}()

	switch h.convention {
	case ConventionGetDownloadLink:
		v, err = h.backend.(DirectLinker).GetDownloadLink(ctx, shareURL)
	case ConventionDownload:
		v, err = h.backend.(Downloader).Download(ctx, shareURL)
	case ConventionGetInfo:
		v, err = h.backend.(InfoGetter).GetInfo(ctx, shareURL)
	default:
		v, err = h.backend.(Caller).Call(ctx, shareURL)
	}
	if err != nil {
		return Value{}, &DelegateError{Convention: h.convention, Err: err}
	}
	return v, nil
}

// Strategy is one way of acquiring a backend from the environment. Acquire
// returns ErrMissing when the backend is simply not present.
type Strategy struct {
	Name    string
	Acquire func(ctx context.Context) (any, error)
}

// Attempt records the outcome of one strategy during detection.
type Attempt struct {
	Strategy string `json:"strategy"`
	Error    string `json:"error,omitempty"`
}

// Detection is the outcome of Detect.
type Detection struct {
	Handle   *Handle
	Attempts []Attempt
}

// Detect evaluates strategies in order and returns a Handle for the first
// one that yields a usable backend. Later strategies are not evaluated. If
// every strategy fails, the returned Detection has a nil Handle.
func Detect(ctx context.Context, strategies ...Strategy) Detection {
	var d Detection
	for _, s := range strategies {
		h, err := acquire(ctx, s)
		if err != nil {
			d.Attempts = append(d.Attempts, Attempt{Strategy: s.Name, Error: err.Error()})
			continue
		}
		d.Attempts = append(d.Attempts, Attempt{Strategy: s.Name})
		d.Handle = h
		return d
	}
	return d
}

func acquire(ctx context.Context, s Strategy) (*Handle, error) {
	backend, err := s.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, ErrMissing
	}
	return NewHandle(s.Name, backend)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]any)
)

// Register makes a backend available to the Registered strategy under the
// given name. It is the extension point for in-process backends: a package
// implementing one calls Register from its init function and a build of the
// service links it in with a blank import. No such package ships with this
// module. It panics if called twice with the same name or with a nil
// backend.
func Register(name string, backend any) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if backend == nil {
		panic("directlink: Register backend is nil")
	}
	if _, dup := registry[name]; dup {
		panic("directlink: Register called twice for backend " + name)
	}
	registry[name] = backend
}

// Backends returns the sorted names of the registered backends.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registered returns a Strategy that acquires the backend registered under
// name.
func Registered(name string) Strategy {
	return Strategy{
		Name: "registered:" + name,
		Acquire: func(ctx context.Context) (any, error) {
			registryMu.RLock()
			backend, ok := registry[name]
			registryMu.RUnlock()
			if !ok {
				return nil, fmt.Errorf("no backend registered as %q: %w", name, ErrMissing)
			}
			return backend, nil
		},
	}
}

func unregisterAllBackends() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]any)
}
