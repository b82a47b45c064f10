package parser

import "sort"

// Registry holds every loaded plugin and implements the claim-by-order
// dispatch of spec.md §4.3: plugins are asked to Match in ascending Order,
// and the first match wins. Two plugins may legitimately both claim the
// same file (a format-specific plugin and the catch-all generic); Order is
// what breaks the tie.
type Registry struct {
	plugins []Plugin
}

// NewRegistry builds a registry from an explicit plugin list rather than
// any global init-time side effect, so a worker process's set of loaded
// plugins is always exactly what its config's parser list names
// (the "all" special is resolved by the caller before reaching here).
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: append([]Plugin(nil), plugins...)}
	sort.SliceStable(r.plugins, func(i, j int) bool {
		return r.plugins[i].Order() < r.plugins[j].Order()
	})
	return r
}

// Plugins returns the registry's plugins in claim order.
func (r *Registry) Plugins() []Plugin {
	return r.plugins
}

// Match tries each plugin in order and returns the first that claims info.
func (r *Registry) Match(info FileInfo) (Plugin, MatchToken, bool) {
	for _, p := range r.plugins {
		if tok, ok := p.Match(info); ok {
			return p, tok, true
		}
	}
	return nil, nil, false
}

// SetupAll calls Setup on every plugin, stopping at the first error.
func (r *Registry) SetupAll(ctx *Context) error {
	for _, p := range r.plugins {
		if err := p.Setup(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StartAll calls Start on every plugin, stopping at the first error.
func (r *Registry) StartAll() error {
	for _, p := range r.plugins {
		if err := p.Start(); err != nil {
			return err
		}
	}
	return nil
}

// FinishAll calls Finish on every plugin, collecting but not stopping on
// individual errors, since a scan session should end cleanly for every
// plugin regardless of one failing.
func (r *Registry) FinishAll() []error {
	var errs []error
	for _, p := range r.plugins {
		if err := p.Finish(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// CloseAll calls Close on every plugin, collecting all errors.
func (r *Registry) CloseAll() []error {
	var errs []error
	for _, p := range r.plugins {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
