// Package registry owns the live model sets, one entry per sector, each
// guarded by its own reader/writer lock and readiness state machine:
//
//	uninitialized → training → ready
//	ready → training → ready
//
// A failed training returns the entry to the state it left. Predictions are
// only served from entries in the ready state.
package registry

import (
	"fmt"
	"sync"

	"carboncast/internal/forecast/models"
	"carboncast/pkg/domain"
	dErrors "carboncast/pkg/domain-errors"
)

// State is an entry's readiness.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateTraining      State = "training"
	StateReady         State = "ready"
)

// Snapshot is a consistent read of one entry.
type Snapshot struct {
	Set        *models.ModelSet
	State      State
	Generation uint64
}

type entry struct {
	mu         sync.RWMutex
	state      State
	prev       State
	set        *models.ModelSet
	generation uint64
}

// Registry maps every sector to its entry. The map itself is fixed at
// construction, so only entries need locking.
type Registry struct {
	entries map[domain.Sector]*entry
}

// New returns a registry with every sector uninitialized.
func New() *Registry {
	r := &Registry{entries: make(map[domain.Sector]*entry)}
	for _, s := range domain.AllSectors() {
		r.entries[s] = &entry{state: StateUninitialized}
	}
	return r
}

func (r *Registry) entry(sector domain.Sector) (*entry, error) {
	e, ok := r.entries[sector]
	if !ok {
		_, err := domain.ParseSector(string(sector))
		return nil, err
	}
	return e, nil
}

// BeginTraining moves sector into training. It fails with CodeConflict when a
// training for the sector is already underway.
func (r *Registry) BeginTraining(sector domain.Sector) error {
	e, err := r.entry(sector)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateTraining {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("training for %s is already in progress", sector))
	}
	e.prev = e.state
	e.state = StateTraining
	return nil
}

// Install replaces sector's model set and marks it ready. Sets that are not
// Ready are rejected and leave the entry untouched.
func (r *Registry) Install(sector domain.Sector, set *models.ModelSet) error {
	e, err := r.entry(sector)
	if err != nil {
		return err
	}
	if err := set.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "refusing to install incomplete model set")
	}
	if set.Sector != sector {
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("model set for %s cannot serve %s", set.Sector, sector))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set = set
	e.state = StateReady
	e.prev = StateReady
	e.generation++
	return nil
}

// Abort ends a training that produced no model set. The entry returns to the
// state it had before BeginTraining; a previously installed set is kept.
func (r *Registry) Abort(sector domain.Sector) {
	e, err := r.entry(sector)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateTraining {
		return
	}
	e.state = e.prev
}

// Snapshot returns sector's model set for inference. It fails with
// CodeNotReady unless the entry is ready.
func (r *Registry) Snapshot(sector domain.Sector) (Snapshot, error) {
	e, err := r.entry(sector)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := Snapshot{Set: e.set, State: e.state, Generation: e.generation}
	if e.state != StateReady || !e.set.Ready() {
		return snap, dErrors.New(dErrors.CodeNotReady, fmt.Sprintf("models for %s are not ready (state: %s)", sector, e.state))
	}
	return snap, nil
}

// State returns sector's readiness, or uninitialized for an unknown sector.
func (r *Registry) State(sector domain.Sector) State {
	e, err := r.entry(sector)
	if err != nil {
		return StateUninitialized
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Status returns every sector's readiness.
func (r *Registry) Status() map[domain.Sector]State {
	out := make(map[domain.Sector]State, len(r.entries))
	for s := range r.entries {
		out[s] = r.State(s)
	}
	return out
}

// AllReady reports whether every sector can serve predictions.
func (r *Registry) AllReady() bool {
	for _, st := range r.Status() {
		if st != StateReady {
			return false
		}
	}
	return true
}
