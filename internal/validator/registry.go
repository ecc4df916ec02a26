// Package validator defines the commit validator contract, the registry that
// holds the validators registered at startup, and the built-in validators.
package validator

import (
	"context"
	"fmt"

	"github.com/kestrelworks/repowarden/internal/domain/model"
	"github.com/kestrelworks/repowarden/internal/domain/port/driven"
)

// Validator is a named, stateless unit of commit verification. The name
// doubles as the status context posted to GitHub, which is how the
// dispatcher later recognizes its own statuses. Validators must not mutate
// the repository client they are given.
type Validator interface {
	Name() string
	Validate(ctx context.Context, sha, actor string, repo driven.RepoClient) (model.Verdict, error)
}

// Registry holds the ordered set of registered validators. It is built once
// at startup from an explicit registration list and immutable afterwards.
// Order is preserved for deterministic iteration but carries no semantic
// weight: all validators run concurrently.
type Registry struct {
	ordered []Validator
	byName  map[string]Validator
}

// NewRegistry builds a registry from the given validators. Duplicate names
// are a configuration defect and rejected.
func NewRegistry(validators ...Validator) (*Registry, error) {
	r := &Registry{
		ordered: make([]Validator, 0, len(validators)),
		byName:  make(map[string]Validator, len(validators)),
	}

	for _, v := range validators {
		if _, exists := r.byName[v.Name()]; exists {
			return nil, fmt.Errorf("duplicate validator name %q", v.Name())
		}
		r.ordered = append(r.ordered, v)
		r.byName[v.Name()] = v
	}

	return r, nil
}

// All returns the validators in registration order.
func (r *Registry) All() []Validator {
	return r.ordered
}

// ByName returns the validator with the given name, or nil.
func (r *Registry) ByName(name string) Validator {
	return r.byName[name]
}

// Contains reports whether a validator with the given name is registered.
// The dispatcher uses this as the "is this status context one of ours" test.
func (r *Registry) Contains(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns the registered validator names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, v := range r.ordered {
		names = append(names, v.Name())
	}
	return names
}
