// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package activations

import (
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Constructor creates a parametric activation for layer.
//
// name is the key the activation was requested with. New learnable variables must be created
// with vars, which keeps their names unique within one Build call.
type Constructor func(name string, layer Layer, cfg Config, vars *Vars) (Activation, error)

// Variant describes a parametric activation type for the Registry.
type Variant struct {
	// Type of the activation, it defines the canonical key, see KeyFor.
	Type reflect.Type

	// Aliases are extra keys for the variant.
	Aliases []string

	// Requires lists the configuration the variant needs. It is validated before
	// any variant in a Build call is constructed.
	Requires []Requirement

	New Constructor
}

// Key is the canonical registry key of the variant.
func (v *Variant) Key() string {
	return KeyFor(v.Type)
}

func (v *Variant) validate(cfg Config) error {
	for _, req := range v.Requires {
		if err := req.validate(cfg); err != nil {
			return errors.WithMessagef(err, "activation %q", v.Key())
		}
	}
	return nil
}

// KeyFor returns the registry key for a type: its Go name lower-cased, with a "-" where a lower-case
// letter is followed by an upper-case one. E.g.: Prelu -> "prelu", LGrelu -> "lgrelu",
// PiecewiseLinear -> "piecewise-linear". Pointer types use the name of the type pointed to.
func KeyFor(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	var sb strings.Builder
	prevLower := false
	for _, r := range t.Name() {
		if unicode.IsUpper(r) && prevLower {
			sb.WriteByte('-')
		}
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}

// Registry maps keys to parametric activation variants.
//
// It is safe for concurrent use, but it is usually populated once, from init functions.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]*Variant
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{variants: make(map[string]*Variant)}
}

// DefaultRegistry is used by the package level functions, and holds the variants defined in this package.
var DefaultRegistry = NewRegistry()

// Register adds the variant under its canonical key and all its aliases.
//
// It fails with ErrRegistrationConflict if any of the keys is already taken, by another variant
// or by a stateless function. In that case nothing is registered.
func (r *Registry) Register(v Variant) error {
	if v.Type == nil || v.New == nil {
		return errors.New("activations.Variant requires a Type and a New constructor")
	}
	key := v.Key()
	if key == "" {
		return errors.Errorf("activations.Variant type %s has no name to derive a key from", v.Type)
	}
	keys := append([]string{key}, v.Aliases...)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, k := range keys {
		if _, found := functions[k]; found {
			return errors.Wrapf(ErrRegistrationConflict, "%q (variant %q) is a stateless activation", k, key)
		}
		if prev, found := r.variants[k]; found {
			return errors.Wrapf(ErrRegistrationConflict, "%q (variant %q) is already used by variant %q", k, key, prev.Key())
		}
		if slices.Contains(keys[:i], k) {
			return errors.Wrapf(ErrRegistrationConflict, "%q listed twice for variant %q", k, key)
		}
	}
	variant := &v
	for _, k := range keys {
		r.variants[k] = variant
	}
	klog.V(1).Infof("activations: registered %q (aliases %v)", key, v.Aliases)
	return nil
}

// MustRegister is like Register, but panics on conflicts. Use it from init functions, so conflicts
// abort the program before any network is built.
func (r *Registry) MustRegister(v Variant) {
	if err := r.Register(v); err != nil {
		panic(err)
	}
}

// Lookup returns the variant registered under key.
func (r *Registry) Lookup(key string) (*Variant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, found := r.variants[key]
	return v, found
}

// Keys returns all registered keys, aliases included, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.variants))
	for k := range r.variants {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Register a variant in the DefaultRegistry.
func Register(v Variant) error { return DefaultRegistry.Register(v) }

// MustRegister a variant in the DefaultRegistry, panicking on conflicts.
func MustRegister(v Variant) { DefaultRegistry.MustRegister(v) }

// LookupVariant in the DefaultRegistry.
func LookupVariant(key string) (*Variant, bool) { return DefaultRegistry.Lookup(key) }

// VariantKeys lists the keys of the DefaultRegistry.
func VariantKeys() []string { return DefaultRegistry.Keys() }
