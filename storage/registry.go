package storage

import (
	"context"
	"io"
	"sort"

	"github.com/pkg/errors"

	"github.com/timeshipd/timeship/internal/logging"
)

var log = logging.Module("timeship/storage")

// Registry holds named storages and the default selection. It is
// populated once at boot and read-only afterwards, so no locking is
// required for lookups.
type Registry struct {
	names       []string // registration order
	byName      map[string]Storage
	defaultName string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Storage{}}
}

// Register adds a storage under the given name.
func (r *Registry) Register(name string, s Storage) error {
	if _, ok := r.byName[name]; ok {
		return errors.Errorf("storage %q already registered", name)
	}

	r.names = append(r.names, name)
	r.byName[name] = s

	return nil
}

// SetDefault selects the storage used when no storage name is given.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.byName[name]; !ok {
		return errors.Errorf("default storage %q not registered", name)
	}

	r.defaultName = name

	return nil
}

// Default returns the name of the default storage, if any.
func (r *Registry) Default() string {
	return r.defaultName
}

// ByName returns the storage registered under the given name.
func (r *Registry) ByName(name string) (Storage, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Names returns the sorted names of all registered storages.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.names...)
	sort.Strings(names)

	return names
}

// CloseAll closes every storage that supports closing, in reverse
// registration order. The first error is returned, later ones are
// logged.
func (r *Registry) CloseAll(ctx context.Context) error {
	var firstErr error

	for i := len(r.names) - 1; i >= 0; i-- {
		name := r.names[i]

		c, ok := r.byName[name].(io.Closer)
		if !ok {
			continue
		}

		if err := c.Close(); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "unable to close storage %q", name)
			} else {
				log(ctx).Errorf("unable to close storage %q: %v", name, err)
			}
		}
	}

	return firstErr
}
