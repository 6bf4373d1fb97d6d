package loader

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tellusmaps/terrastream/tile"
)

type requestState int

const (
	stateIdle requestState = iota
	stateQueued
	stateRunning
	stateCompleted
)

// Request is a pending tile-data load. Each tile owns at most one request,
// keyed by its tile key, and resubmits it with a fresh priority on every
// load-eligible visit.
//
// Generation ties the request to one incarnation of the owning tile: a
// result whose generation no longer matches must not be applied.
type Request struct {
	ID         string
	Key        tile.Key
	Generation uint64

	mutex    sync.Mutex
	state    requestState
	canceled bool
	filter   tile.LayerSet
	priority float64
	sequence uint64
	result   *tile.Model
}

func NewRequest(key tile.Key, generation uint64) *Request {
	return &Request{
		ID:         uuid.New().String(),
		Key:        key,
		Generation: generation,
	}
}

// SetFilter restricts the next fetch to the given layers. A nil filter
// fetches everything.
func (r *Request) SetFilter(filter tile.LayerSet) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.filter = filter
}

func (r *Request) Filter() tile.LayerSet {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.filter
}

// Cancel marks the request so that a pending dispatch is skipped and an
// in-flight result is discarded. A tile being evicted cancels its request
// before destruction.
func (r *Request) Cancel() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.canceled = true
}

func (r *Request) Canceled() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.canceled
}
