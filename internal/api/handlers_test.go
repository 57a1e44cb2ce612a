package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/domain"
	"github.com/phrazzld/task-api/internal/store"
)

// memUserStore is an in-memory store.UserStore for handler tests. Like the
// real store it deletes the owner's tasks together with the account when a
// task store is attached.
type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
	tasks *memTaskStore
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]*domain.User)}
}

func (s *memUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *memUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *memUserStore) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return store.ErrUserNotFound
	}
	for id, existing := range s.users {
		if id != user.ID && existing.Email == user.Email {
			return store.ErrEmailExists
		}
	}
	cp := *user
	cp.Tokens = current.Tokens
	s.users[user.ID] = &cp
	return nil
}

func (s *memUserStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return store.ErrUserNotFound
	}
	if s.tasks != nil {
		if err := s.tasks.DeleteAllByOwner(ctx, id); err != nil {
			return err
		}
	}
	delete(s.users, id)
	return nil
}

func (s *memUserStore) AddToken(_ context.Context, id uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	user.Tokens = append(user.Tokens, token)
	return nil
}

func (s *memUserStore) RemoveToken(_ context.Context, id uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	kept := user.Tokens[:0]
	for _, t := range user.Tokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	user.Tokens = kept
	return nil
}

func (s *memUserStore) ClearTokens(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	user.Tokens = nil
	return nil
}

func (s *memUserStore) UpdateAvatar(_ context.Context, id uuid.UUID, avatar []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return store.ErrUserNotFound
	}
	user.Avatar = avatar
	return nil
}

func (s *memUserStore) WithTx(_ *sql.Tx) store.UserStore { return s }

func (s *memUserStore) tokensOf(id uuid.UUID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil
	}
	return append([]string(nil), user.Tokens...)
}

// memTaskStore is an in-memory store.TaskStore for handler tests. It records
// the last ListOptions it saw so tests can assert query parsing.
type memTaskStore struct {
	mu       sync.Mutex
	tasks    map[uuid.UUID]*domain.Task
	lastOpts store.ListOptions
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (s *memTaskStore) Create(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memTaskStore) GetByOwner(_ context.Context, ownerID, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return nil, store.ErrTaskNotFound
	}
	cp := *task
	return &cp, nil
}

func (s *memTaskStore) ListByOwner(_ context.Context, ownerID uuid.UUID, opts store.ListOptions) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOpts = opts

	var out []*domain.Task
	for _, task := range s.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if opts.Completed != nil && task.Completed != *opts.Completed {
			continue
		}
		cp := *task
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })

	if opts.Skip > 0 {
		if opts.Skip >= len(out) {
			return nil, nil
		}
		out = out[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *memTaskStore) Update(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[task.ID]
	if !ok || current.OwnerID != task.OwnerID {
		return store.ErrTaskNotFound
	}
	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memTaskStore) DeleteByOwner(_ context.Context, ownerID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.OwnerID != ownerID {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *memTaskStore) DeleteAllByOwner(_ context.Context, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, task := range s.tasks {
		if task.OwnerID == ownerID {
			delete(s.tasks, id)
		}
	}
	return nil
}

func (s *memTaskStore) ListIncomplete(_ context.Context) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, task := range s.tasks {
		if !task.Completed {
			cp := *task
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memTaskStore) WithTx(_ *sql.Tx) store.TaskStore { return s }

// stubMailer records account mail sends.
type stubMailer struct {
	mu       sync.Mutex
	welcomes []string
	goodbyes []string
}

func (m *stubMailer) SendWelcome(_ context.Context, email, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes = append(m.welcomes, email)
}

func (m *stubMailer) SendGoodbye(_ context.Context, email, _ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goodbyes = append(m.goodbyes, email)
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asUser stamps the request context the way the auth middleware does.
func asUser(req *http.Request, user *domain.User, token string) *http.Request {
	ctx := context.WithValue(req.Context(), shared.UserContextKey, user)
	ctx = context.WithValue(ctx, shared.TokenContextKey, token)
	return req.WithContext(ctx)
}

// decodeBody unmarshals a recorded response body.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}
