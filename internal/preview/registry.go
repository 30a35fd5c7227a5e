package preview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Registry holds the configured preprocessors in priority order and resolves
// the first one that both claims a token and probes available on this host.
type Registry struct {
	logger *slog.Logger

	// prefer forces a single implementation by name. When the forced tool
	// is missing, resolution fails rather than silently using another.
	prefer string

	mu    sync.RWMutex
	order []Preprocessor
}

// NewRegistry creates an empty registry. prefer is "" for automatic
// selection, or a preprocessor name ("imagemagick", "graphicsmagick") to pin
// resolution to that implementation.
func NewRegistry(prefer string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		prefer: prefer,
		logger: logger.With(slog.String("component", "preprocessor-registry")),
	}
}

// NewDefaultRegistry creates a registry with the standard tool set.
// ImageMagick registers first: its Photoshop delegate is stronger, and it
// covers every convertible token as the universal fallback.
func NewDefaultRegistry(limits ResourceLimits, encode EncodeOptions, prefer string, logger *slog.Logger) *Registry {
	r := NewRegistry(prefer, logger)
	r.Register(NewImageMagick(limits, encode, logger))
	r.Register(NewGraphicsMagick(limits, encode, logger))
	return r
}

// Register appends a preprocessor. Registration order is priority order.
func (r *Registry) Register(p Preprocessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, p)
}

// Known reports whether any registered preprocessor claims the token,
// regardless of availability.
func (r *Registry) Known(token FormatToken) bool {
	token = NormalizeToken(string(token))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.order {
		if p.Supports(token) {
			return true
		}
	}
	return false
}

// Names returns the registered preprocessor names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, p := range r.order {
		names = append(names, p.Name())
	}
	return names
}

// ToolStatus reports one preprocessor's availability for diagnostics.
type ToolStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// Status probes every registered preprocessor. Probes are memoized by the
// implementations, so this is cheap after the first call.
func (r *Registry) Status(ctx context.Context) []ToolStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	statuses := make([]ToolStatus, 0, len(r.order))
	for _, p := range r.order {
		statuses = append(statuses, ToolStatus{Name: p.Name(), Available: p.Available(ctx)})
	}
	return statuses
}

// Resolve returns the preprocessor that will handle the token. With a forced
// preference the named tool must support the token and be installed; in
// automatic mode candidates are tried in registration order and unavailable
// ones are skipped. Exhausting all candidates yields ErrNoPreprocessor.
func (r *Registry) Resolve(ctx context.Context, token FormatToken) (Preprocessor, error) {
	token = NormalizeToken(string(token))

	r.mu.RLock()
	candidates := make([]Preprocessor, len(r.order))
	copy(candidates, r.order)
	r.mu.RUnlock()

	if r.prefer != "" {
		for _, p := range candidates {
			if p.Name() != r.prefer {
				continue
			}
			if !p.Supports(token) {
				return nil, unsupportedErr(
					fmt.Sprintf("format %q is not supported by %s", token, r.prefer), nil)
			}
			if !p.Available(ctx) {
				return nil, newConvertError(ErrNoPreprocessor,
					fmt.Sprintf("configured preprocessor %s is not installed", r.prefer), "", nil)
			}
			return p, nil
		}
		return nil, newConvertError(ErrNoPreprocessor,
			fmt.Sprintf("configured preprocessor %q is not registered", r.prefer), "", nil)
	}

	var unavailable []string
	for _, p := range candidates {
		if !p.Supports(token) {
			continue
		}
		if !p.Available(ctx) {
			r.logger.Debug("preprocessor unavailable, trying next",
				slog.String("preprocessor", p.Name()),
				slog.String("format", string(token)))
			unavailable = append(unavailable, p.Name())
			continue
		}
		return p, nil
	}

	if len(unavailable) == 0 {
		return nil, unsupportedErr(fmt.Sprintf("no preprocessor handles format %q", token), nil)
	}
	return nil, newConvertError(ErrNoPreprocessor,
		fmt.Sprintf("no installed preprocessor handles format %q", token),
		fmt.Sprintf("probed unavailable: %s", strings.Join(unavailable, ", ")), nil)
}
