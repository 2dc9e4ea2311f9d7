// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rankcore Contributors

// Package ranktest provides in-memory fakes for rank persistence and
// propagation collaborators, shared across unit tests.
package ranktest

import (
	"context"
	"sync"

	"github.com/rankcore/rankcore/internal/rank"
)

// RankRepo is an in-memory rank.RankRepository.
type RankRepo struct {
	mu    sync.Mutex
	ranks map[string]*rank.Rank

	// FindAllErr, SaveErr, and DeleteErr force the next matching call to
	// fail when set.
	FindAllErr error
	SaveErr    error
	DeleteErr  error

	// Saved records every id passed to Save, in order.
	Saved []string
}

// NewRankRepo creates a repository seeded with the given ranks.
func NewRankRepo(ranks ...*rank.Rank) *RankRepo {
	repo := &RankRepo{ranks: make(map[string]*rank.Rank)}
	for _, r := range ranks {
		repo.ranks[r.ID] = r
	}
	return repo
}

func (f *RankRepo) FindAll(_ context.Context) ([]*rank.Rank, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindAllErr != nil {
		return nil, f.FindAllErr
	}
	out := make([]*rank.Rank, 0, len(f.ranks))
	for _, r := range f.ranks {
		out = append(out, r)
	}
	return out, nil
}

func (f *RankRepo) FindByID(_ context.Context, id string) (*rank.Rank, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.ranks[id]
	if !ok {
		return nil, rank.ErrNotFound
	}
	return r, nil
}

func (f *RankRepo) Save(_ context.Context, r *rank.Rank) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.ranks[r.ID] = r
	f.Saved = append(f.Saved, r.ID)
	return nil
}

func (f *RankRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.ranks[id]; !ok {
		return rank.ErrNotFound
	}
	delete(f.ranks, id)
	return nil
}

// PlayerRepo is an in-memory rank.PlayerRepository.
type PlayerRepo struct {
	mu      sync.Mutex
	players map[string]*rank.Player

	FindErr error
	SaveErr error

	// Saved records every player id passed to Save, in order.
	Saved []string
}

// NewPlayerRepo creates a repository seeded with the given players.
func NewPlayerRepo(players ...*rank.Player) *PlayerRepo {
	repo := &PlayerRepo{players: make(map[string]*rank.Player)}
	for _, p := range players {
		repo.players[p.ID] = p
	}
	return repo
}

func (f *PlayerRepo) FindByID(_ context.Context, id string) (*rank.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FindErr != nil {
		return nil, f.FindErr
	}
	p, ok := f.players[id]
	if !ok {
		return nil, rank.ErrNotFound
	}
	return p.Clone(), nil
}

func (f *PlayerRepo) Save(_ context.Context, p *rank.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.players[p.ID] = p.Clone()
	f.Saved = append(f.Saved, p.ID)
	return nil
}

// Stored returns the persisted player state, or nil if absent.
func (f *PlayerRepo) Stored(id string) *rank.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil
	}
	return p.Clone()
}

// Publisher records published change messages.
type Publisher struct {
	mu       sync.Mutex
	messages []rank.ChangeMessage

	PublishErr error
}

// NewPublisher creates an empty recording publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (f *Publisher) Publish(_ context.Context, msg rank.ChangeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.messages = append(f.messages, msg)
	return nil
}

// Messages returns a copy of all published messages.
func (f *Publisher) Messages() []rank.ChangeMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rank.ChangeMessage, len(f.messages))
	copy(out, f.messages)
	return out
}

// NewStore builds a loaded store over an in-memory repository seeded with
// the given ranks. A default rank is added if none of the seeds carries
// the flag.
func NewStore(t interface{ Fatalf(string, ...any) }, ranks ...*rank.Rank) *rank.Store {
	repo := NewRankRepo(ranks...)
	store := rank.NewStore(repo)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("loading test store: %v", err)
	}
	rank.ResolveAll(store)
	return store
}
