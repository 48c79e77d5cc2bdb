package chat

import (
	"context"
	"sync"

	"github.com/healme/healme-chat/internal/metrics"
	"go.uber.org/zap"
)

// EngineFactory builds a fresh, unstarted engine for one viewer of a conversation.
type EngineFactory func(key ConversationKey, role Role) *Engine

type viewKey struct {
	conv ConversationKey
	role Role
}

// Registry holds the running engine of every open chat view.
type Registry struct {
	mu      sync.Mutex
	engines map[viewKey]*Engine
	factory EngineFactory
	log     *zap.Logger
}

func NewRegistry(factory EngineFactory, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{engines: make(map[viewKey]*Engine), factory: factory, log: log}
}

// Enter returns the running engine for the view, starting a new one if needed.
func (r *Registry) Enter(ctx context.Context, key ConversationKey, role Role) (*Engine, error) {
	vk := viewKey{conv: key, role: role}

	r.mu.Lock()
	if e, ok := r.engines[vk]; ok && e.State() != StateStopped {
		r.mu.Unlock()
		return e, nil
	}
	e := r.factory(key, role)
	r.engines[vk] = e
	metrics.ActiveEngines.Set(float64(len(r.engines)))
	r.mu.Unlock()

	if err := e.Start(ctx); err != nil {
		r.remove(vk, e)
		return nil, err
	}
	r.log.Debug("chat view entered", zap.Stringer("conversation", key), zap.String("role", string(role)))
	return e, nil
}

func (r *Registry) Get(key ConversationKey, role Role) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.engines[viewKey{conv: key, role: role}]
	return e, ok
}

// Leave tears the view's engine down. It reports whether an engine was running.
func (r *Registry) Leave(key ConversationKey, role Role) bool {
	vk := viewKey{conv: key, role: role}
	r.mu.Lock()
	e, ok := r.engines[vk]
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.Teardown()
	r.remove(vk, e)
	r.log.Debug("chat view left", zap.Stringer("conversation", key), zap.String("role", string(role)))
	return true
}

func (r *Registry) remove(vk viewKey, e *Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.engines[vk]; ok && cur == e {
		delete(r.engines, vk)
	}
	metrics.ActiveEngines.Set(float64(len(r.engines)))
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.engines)
}

// Close tears down every engine.
func (r *Registry) Close() {
	r.mu.Lock()
	engines := r.engines
	r.engines = make(map[viewKey]*Engine)
	metrics.ActiveEngines.Set(0)
	r.mu.Unlock()

	for _, e := range engines {
		e.Teardown()
	}
}
