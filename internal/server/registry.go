// internal/server/registry.go
package server

import (
	"context"
	"sync"
	"time"

	"loan-wizard/internal/common/logger"
	"loan-wizard/internal/common/metrics"
	"loan-wizard/internal/wizard"
)

// Factory builds a controller for a newly resolved session.
type Factory func(session wizard.SessionContext) *wizard.Controller

type entry struct {
	controller *wizard.Controller
	session    wizard.SessionContext
	lastSeen   time.Time
}

// Registry holds live controllers in memory. Drafts are never persisted; an
// entry that sits idle longer than the TTL is discarded.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	factory Factory
	ttl     time.Duration
	logger  logger.Logger
	now     func() time.Time
}

func NewRegistry(factory Factory, ttl time.Duration, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Registry{
		entries: make(map[string]*entry),
		factory: factory,
		ttl:     ttl,
		logger:  log,
		now:     time.Now,
	}
}

// Create starts a wizard owned by session.
func (r *Registry) Create(session wizard.SessionContext) *wizard.Controller {
	ctrl := r.factory(session)

	r.mu.Lock()
	r.entries[ctrl.ID()] = &entry{controller: ctrl, session: session, lastSeen: r.now()}
	count := len(r.entries)
	r.mu.Unlock()

	metrics.WizardDraftsActive.Set(float64(count))
	return ctrl
}

// Get returns the controller when it exists and belongs to session.
// Another session's draft is reported as missing.
func (r *Registry) Get(id string, session wizard.SessionContext) (*wizard.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.session.TenantID != session.TenantID || e.session.CustomerID != session.CustomerID {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.controller, true
}

// Remove drops an entry without touching the controller.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	count := len(r.entries)
	r.mu.Unlock()

	metrics.WizardDraftsActive.Set(float64(count))
}

// Len is the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep discards every entry idle since before now-ttl. A controller in the
// middle of a submission is kept until the gateway answers.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*entry
	for id, e := range r.entries {
		if e.lastSeen.After(cutoff) {
			continue
		}
		// A draft mid-submission refuses and stays registered.
		if err := e.controller.Discard(); err != nil {
			continue
		}
		expired = append(expired, e)
		delete(r.entries, id)
	}
	count := len(r.entries)
	r.mu.Unlock()

	for range expired {
		metrics.WizardDraftsDiscarded.WithLabelValues("idle").Inc()
	}
	metrics.WizardDraftsActive.Set(float64(count))

	if len(expired) > 0 {
		r.logger.Info("evicted idle drafts", map[string]interface{}{
			"evicted":   len(expired),
			"remaining": count,
		})
	}
	return len(expired)
}

// Run sweeps on every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}
