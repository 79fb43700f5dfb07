package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-timetable-engine/internal/dto"
)

// timetableProposal is a generated grid awaiting save, kept under TTL.
type timetableProposal struct {
	Response dto.GenerateTimetableResponse `json:"response"`
	Days     []string                      `json:"days"`
	Slots    []dto.SlotPayload             `json:"slots"`
}

// ProposalStore holds proposals between generate and save calls.
type ProposalStore interface {
	Save(ctx context.Context, p timetableProposal) error
	Get(ctx context.Context, id string) (timetableProposal, bool, error)
	Delete(ctx context.Context, id string) error
}

// memoryProposalStore is the default single-process store.
type memoryProposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]timetableProposal
}

// NewMemoryProposalStore builds an in-memory TTL store.
func NewMemoryProposalStore(ttl time.Duration) ProposalStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &memoryProposalStore{ttl: ttl, items: make(map[string]timetableProposal)}
}

func (s *memoryProposalStore) Save(_ context.Context, p timetableProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.Response.ProposalID] = p
	return nil
}

func (s *memoryProposalStore) Get(_ context.Context, id string) (timetableProposal, bool, error) {
	s.mu.RLock()
	p, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return timetableProposal{}, false, nil
	}
	if time.Since(p.Response.RequestedAt) > s.ttl {
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
		return timetableProposal{}, false, nil
	}
	return p, true, nil
}

func (s *memoryProposalStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

// redisProposalStore shares proposals across instances, with Redis owning
// the TTL.
type redisProposalStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProposalStore builds a Redis-backed TTL store.
func NewRedisProposalStore(client *redis.Client, ttl time.Duration) ProposalStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &redisProposalStore{client: client, ttl: ttl}
}

func proposalKey(id string) string {
	return "timetable:proposal:" + id
}

func (s *redisProposalStore) Save(ctx context.Context, p timetableProposal) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal proposal %s: %w", p.Response.ProposalID, err)
	}
	if err := s.client.Set(ctx, proposalKey(p.Response.ProposalID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set proposal %s: %w", p.Response.ProposalID, err)
	}
	return nil
}

func (s *redisProposalStore) Get(ctx context.Context, id string) (timetableProposal, bool, error) {
	raw, err := s.client.Get(ctx, proposalKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return timetableProposal{}, false, nil
		}
		return timetableProposal{}, false, fmt.Errorf("redis get proposal %s: %w", id, err)
	}
	var p timetableProposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return timetableProposal{}, false, fmt.Errorf("unmarshal proposal %s: %w", id, err)
	}
	return p, true, nil
}

func (s *redisProposalStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, proposalKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete proposal %s: %w", id, err)
	}
	return nil
}
