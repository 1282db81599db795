package instrument

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/newthinker/orb/internal/core"
)

// contractMonth matches a listed-contract suffix such as Z5 or Z25.
var contractMonth = regexp.MustCompile(`^([A-Z0-9]+?)([FGHJKMNQUVXZ])(\d{1,2})$`)

// Registry is the immutable instrument table. It is built once per process and
// shared read-only across goroutines.
type Registry struct {
	specs   map[string]Spec   // canonical symbol -> validated spec
	blocked map[string]struct{}
	aliases map[string]string // normalized alias -> canonical symbol
}

// NewRegistry builds a registry from contract specs and a blocked list.
// Blocked entries only need a symbol and optional aliases.
func NewRegistry(specs []Spec, blocked []Spec) (*Registry, error) {
	r := &Registry{
		specs:   make(map[string]Spec, len(specs)),
		blocked: make(map[string]struct{}, len(blocked)),
		aliases: make(map[string]string),
	}

	addAlias := func(alias, canonical string) error {
		key := clean(alias)
		if key == "" {
			return nil
		}
		if prev, ok := r.aliases[key]; ok && prev != canonical {
			return fmt.Errorf("alias %q maps to both %s and %s", alias, prev, canonical)
		}
		r.aliases[key] = canonical
		return nil
	}

	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		sym := clean(s.Symbol)
		if _, dup := r.specs[sym]; dup {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("duplicate instrument %s", sym))
		}
		s.Symbol = sym
		s.Aliases = append([]string(nil), s.Aliases...)
		if s.Status == StatusBlocked {
			r.blocked[sym] = struct{}{}
		} else {
			r.specs[sym] = s
		}
		for _, a := range append([]string{sym}, s.Aliases...) {
			if err := addAlias(a, sym); err != nil {
				return nil, core.WrapError(core.ErrConfigInvalid, err)
			}
		}
	}

	for _, b := range blocked {
		sym := clean(b.Symbol)
		if sym == "" {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("blocked entry without symbol"))
		}
		if _, ok := r.specs[sym]; ok {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s is both blocked and specified", sym))
		}
		r.blocked[sym] = struct{}{}
		for _, a := range append([]string{sym}, b.Aliases...) {
			if err := addAlias(a, sym); err != nil {
				return nil, core.WrapError(core.ErrConfigInvalid, err)
			}
		}
	}

	return r, nil
}

// Default returns the registry built from DefaultSpecs and DefaultBlocked.
func Default() *Registry {
	r, err := NewRegistry(DefaultSpecs(), DefaultBlocked())
	if err != nil {
		panic(err)
	}
	return r
}

// Guard resolves any case or alias variant of symbol and returns its validated
// spec. Blocked symbols fail with ErrBlockedInstrument; anything without a
// production spec fails with ErrUnknownInstrument.
func (r *Registry) Guard(symbol string) (Spec, error) {
	canonical := r.Canonical(symbol)

	if _, ok := r.blocked[canonical]; ok {
		return Spec{}, core.WrapError(core.ErrBlockedInstrument, fmt.Errorf("%q resolves to blocked symbol %s", symbol, canonical))
	}
	spec, ok := r.specs[canonical]
	if !ok {
		return Spec{}, core.WrapError(core.ErrUnknownInstrument, fmt.Errorf("%q", symbol))
	}
	if spec.Status != StatusProduction {
		return Spec{}, core.WrapError(core.ErrUnknownInstrument, fmt.Errorf("%s has status %s", canonical, spec.Status))
	}
	return spec, nil
}

// Canonical maps a raw symbol onto the registry's canonical name. Unknown
// symbols come back normalized but otherwise untouched.
func (r *Registry) Canonical(symbol string) string {
	key := clean(symbol)
	if c, ok := r.aliases[key]; ok {
		return c
	}
	// Listed contract codes like MGCZ5 or GCZ25 resolve to their root.
	if m := contractMonth.FindStringSubmatch(key); m != nil {
		if c, ok := r.aliases[m[1]]; ok {
			return c
		}
	}
	return key
}

// Symbols returns every known canonical symbol (production, research and blocked), sorted.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.specs)+len(r.blocked))
	for s := range r.specs {
		out = append(out, s)
	}
	for s := range r.blocked {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the raw entry for a canonical symbol without guarding it.
// It is meant for listings; pricing code must use Guard.
func (r *Registry) Lookup(symbol string) (Spec, bool) {
	c := r.Canonical(symbol)
	if _, ok := r.blocked[c]; ok {
		return Spec{Symbol: c, Status: StatusBlocked}, true
	}
	s, ok := r.specs[c]
	return s, ok
}

// clean upper-cases and strips vendor decorations: leading "/" or "@",
// continuous-contract suffixes ("=F", "1!") and separators.
func clean(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimLeft(s, "/@")
	s = strings.TrimSuffix(s, "=F")
	s = strings.TrimSuffix(s, "1!")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '\t':
			return -1
		}
		return r
	}, s)
}
