// Package access keeps the persisted pending/approved/banned user list and
// decides whether a user may use gated features.
package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// State is a user's membership. The zero value means unregistered.
type State string

const (
	StateUnregistered State = ""
	StatePending      State = "pending"
	StateApproved     State = "approved"
	StateBanned       State = "banned"
)

var (
	// ErrPersist wraps failures to write the access list. The mutation was
	// not applied and may be retried.
	ErrPersist = errors.New("persisting access list")
	ErrLoad    = errors.New("loading access list")
)

// Document is the persisted form: three disjoint id lists.
type Document struct {
	Pending  []int64 `json:"pending"`
	Approved []int64 `json:"approved"`
	Banned   []int64 `json:"banned"`
}

// Persister reads and rewrites the whole access list.
type Persister interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}

// Store is the single owner of the access list. Each mutation is applied to
// a copy, persisted, and only then made visible.
type Store struct {
	mu        sync.Mutex
	states    map[int64]State
	persister Persister
}

// Open loads the document once. An id listed in several sets is kept in the
// most restrictive one: banned, then approved, then pending.
func Open(ctx context.Context, p Persister) (*Store, error) {
	doc, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	states := make(map[int64]State, len(doc.Pending)+len(doc.Approved)+len(doc.Banned))
	for _, id := range doc.Pending {
		states[id] = StatePending
	}
	for _, id := range doc.Approved {
		states[id] = StateApproved
	}
	for _, id := range doc.Banned {
		states[id] = StateBanned
	}
	return &Store{states: states, persister: p}, nil
}

// State returns the membership of id.
func (s *Store) State(id int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

// RequestAccess moves an unregistered id to pending. It returns the state
// the id was in before the call; only StateUnregistered causes a write.
func (s *Store) RequestAccess(ctx context.Context, id int64) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.states[id]
	if prev != StateUnregistered {
		return prev, nil
	}
	if err := s.commit(ctx, id, StatePending); err != nil {
		return prev, err
	}
	return prev, nil
}

// Approve moves id to approved from any state.
func (s *Store) Approve(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StateApproved)
}

// Ban moves id to banned from any state.
func (s *Store) Ban(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StateBanned)
}

// Remove drops id from every set.
func (s *Store) Remove(ctx context.Context, id int64) error {
	return s.transition(ctx, id, StateUnregistered)
}

// Snapshot returns the current document with ids sorted.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return document(s.states)
}

// Ping checks that the backing storage is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.persister.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Store) transition(ctx context.Context, id int64, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[id] == to {
		return nil
	}
	return s.commit(ctx, id, to)
}

// commit must be called with s.mu held.
func (s *Store) commit(ctx context.Context, id int64, to State) error {
	next := make(map[int64]State, len(s.states)+1)
	for k, v := range s.states {
		next[k] = v
	}
	if to == StateUnregistered {
		delete(next, id)
	} else {
		next[id] = to
	}

	if err := s.persister.Save(ctx, document(next)); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.states = next
	return nil
}

func document(states map[int64]State) Document {
	doc := Document{Pending: []int64{}, Approved: []int64{}, Banned: []int64{}}
	for id, st := range states {
		switch st {
		case StatePending:
			doc.Pending = append(doc.Pending, id)
		case StateApproved:
			doc.Approved = append(doc.Approved, id)
		case StateBanned:
			doc.Banned = append(doc.Banned, id)
		}
	}
	for _, ids := range [][]int64{doc.Pending, doc.Approved, doc.Banned} {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return doc
}
