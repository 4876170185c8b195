package web

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Platform-LSS/beneficiarios/internal/store"
)

// memStore is an in-memory store.Store for handler tests.
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	pessoas map[int64]store.Pessoa
}

func newMemStore() *memStore {
	return &memStore{pessoas: map[int64]store.Pessoa{}}
}

func (s *memStore) CreatePessoa(_ context.Context, p *store.Pessoa) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now().UTC()
	p.ID = s.nextID
	p.CreatedAt, p.UpdatedAt = now, now
	s.pessoas[p.ID] = *p
	return nil
}

func (s *memStore) GetPessoa(_ context.Context, id int64) (*store.Pessoa, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pessoas[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *memStore) ListPessoas(_ context.Context, f store.PessoaFilter) ([]store.Pessoa, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Pessoa
	for _, p := range s.pessoas {
		if f.Nome != "" && !strings.Contains(strings.ToLower(p.Nome), strings.ToLower(f.Nome)) {
			continue
		}
		if f.ResponsavelID != "" && p.ResponsavelID != f.ResponsavelID {
			continue
		}
		if f.Ativo != nil && p.Ativo != *f.Ativo {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b store.Pessoa) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memStore) UpdatePessoa(_ context.Context, p *store.Pessoa) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pessoas[p.ID]; !ok {
		return store.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	s.pessoas[p.ID] = *p
	return nil
}

func (s *memStore) DeletePessoa(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pessoas[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.pessoas, id)
	return nil
}

func (s *memStore) TransferPessoas(_ context.Context, ids []int64, from, to string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		p, ok := s.pessoas[id]
		if !ok || p.ResponsavelID != from {
			continue
		}
		p.ResponsavelID = to
		s.pessoas[id] = p
		n++
	}
	return n, nil
}

func (s *memStore) Close() {}
