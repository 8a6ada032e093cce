package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/inkvision/pkg/frames"
	"github.com/MrWong99/inkvision/pkg/playback"
	"github.com/MrWong99/inkvision/pkg/provider/classifier"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// is registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to constructors for each provider kind. It is
// safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	classifier map[string]func(ProviderEntry) (classifier.Provider, error)
	frames     map[string]func(ProviderEntry) (frames.Provider, error)
	playback   map[string]func(ProviderEntry) (playback.Sink, error)
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		classifier: make(map[string]func(ProviderEntry) (classifier.Provider, error)),
		frames:     make(map[string]func(ProviderEntry) (frames.Provider, error)),
		playback:   make(map[string]func(ProviderEntry) (playback.Sink, error)),
	}
}

// RegisterClassifier registers a classifier factory under name, replacing
// any previous registration.
func (r *Registry) RegisterClassifier(name string, factory func(ProviderEntry) (classifier.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classifier[name] = factory
}

// RegisterFrames registers a frame provider factory under name.
func (r *Registry) RegisterFrames(name string, factory func(ProviderEntry) (frames.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[name] = factory
}

// RegisterPlayback registers a playback sink factory under name.
func (r *Registry) RegisterPlayback(name string, factory func(ProviderEntry) (playback.Sink, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playback[name] = factory
}

// CreateClassifier builds the classifier registered under entry.Name.
func (r *Registry) CreateClassifier(entry ProviderEntry) (classifier.Provider, error) {
	return create(r, r.classifier, "classifier", entry)
}

// CreateFrames builds the frame provider registered under entry.Name.
func (r *Registry) CreateFrames(entry ProviderEntry) (frames.Provider, error) {
	return create(r, r.frames, "frames", entry)
}

// CreatePlayback builds the playback sink registered under entry.Name.
func (r *Registry) CreatePlayback(entry ProviderEntry) (playback.Sink, error) {
	return create(r, r.playback, "playback", entry)
}

func create[T any](r *Registry, factories map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}
