package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/itchan-dev/threads/shared/domain"
	internal_errors "github.com/itchan-dev/threads/shared/errors"
)

// --- In-memory store ---

// memStore implements every storage interface of the package over maps.
// errs makes the named method fail, calls counts invocations per method.
type memStore struct {
	mu      sync.Mutex
	threads map[domain.ThreadId]*domain.Thread
	order   []domain.ThreadId // insertion order
	users   map[domain.UserId]*domain.User
	now     time.Time
	tick    time.Duration
	seq     int

	errs  map[string]error
	calls map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		threads: map[domain.ThreadId]*domain.Thread{},
		users:   map[domain.UserId]*domain.User{},
		now:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		tick:    time.Second,
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (m *memStore) enter(method string) error {
	m.calls[method]++
	return m.errs[method]
}

func (m *memStore) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *memStore) addUser(id, username, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(m.tick)
	m.users[id] = &domain.User{Id: id, Username: username, Name: name, Image: "/img/" + id, Onboarded: true, CreatedAt: m.now}
}

func copyThread(t *domain.Thread) domain.Thread {
	c := *t
	c.Children = slices.Clone(t.Children)
	if c.Children == nil {
		c.Children = []domain.ThreadId{}
	}
	return c
}

func copyUser(u *domain.User) domain.User {
	c := *u
	c.Threads = slices.Clone(u.Threads)
	return c
}

func (m *memStore) CreateThread(ctx context.Context, data domain.ThreadCreationData) (domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateThread"); err != nil {
		return domain.Thread{}, err
	}
	author, ok := m.users[data.Author]
	if !ok {
		return domain.Thread{}, internal_errors.NotFound("User %s not found", data.Author)
	}
	var parent *domain.Thread
	if data.ParentId != nil {
		if parent, ok = m.threads[*data.ParentId]; !ok {
			return domain.Thread{}, internal_errors.NotFound("Thread %s not found", *data.ParentId)
		}
	}

	m.seq++
	m.now = m.now.Add(m.tick)
	t := &domain.Thread{
		Id:        fmt.Sprintf("t%03d", m.seq),
		Text:      data.Text,
		Author:    data.Author,
		ParentId:  data.ParentId,
		Children:  []domain.ThreadId{},
		CreatedAt: m.now,
	}
	m.threads[t.Id] = t
	m.order = append(m.order, t.Id)
	author.Threads = append(author.Threads, t.Id)
	if parent != nil {
		parent.Children = append(parent.Children, t.Id)
	}
	return copyThread(t), nil
}

func (m *memStore) GetThread(ctx context.Context, id domain.ThreadId) (domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetThread"); err != nil {
		return domain.Thread{}, err
	}
	t, ok := m.threads[id]
	if !ok {
		return domain.Thread{}, internal_errors.NotFound("Thread %s not found", id)
	}
	return copyThread(t), nil
}

// GetThreads walks the map so callers can't rely on the order
func (m *memStore) GetThreads(ctx context.Context, ids []domain.ThreadId) ([]domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetThreads"); err != nil {
		return nil, err
	}
	wanted := map[domain.ThreadId]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var out []domain.Thread
	for id, t := range m.threads {
		if wanted[id] {
			out = append(out, copyThread(t))
		}
	}
	return out, nil
}

func (m *memStore) GetUsers(ctx context.Context, ids []domain.UserId) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetUsers"); err != nil {
		return nil, err
	}
	var out []domain.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, copyUser(u))
		}
	}
	return out, nil
}

func (m *memStore) topLevel() []domain.Thread {
	var out []domain.Thread
	for _, id := range m.order {
		if t := m.threads[id]; t.ParentId == nil {
			out = append(out, copyThread(t))
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Thread) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func window[T any](items []T, page domain.Page) []T {
	if page.Offset() >= len(items) {
		return []T{}
	}
	return items[page.Offset():min(len(items), page.Offset()+page.Size)]
}

func (m *memStore) GetTopLevelThreads(ctx context.Context, page domain.Page) ([]domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetTopLevelThreads"); err != nil {
		return nil, err
	}
	return window(m.topLevel(), page), nil
}

func (m *memStore) CountTopLevelThreads(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountTopLevelThreads"); err != nil {
		return 0, err
	}
	return len(m.topLevel()), nil
}

func (m *memStore) GetThreadsByAuthor(ctx context.Context, userId domain.UserId) ([]domain.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetThreadsByAuthor"); err != nil {
		return nil, err
	}
	var out []domain.Thread
	for _, id := range m.order {
		if t := m.threads[id]; t.Author == userId {
			out = append(out, copyThread(t))
		}
	}
	return out, nil
}

func (m *memStore) GetUser(ctx context.Context, id domain.UserId) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetUser"); err != nil {
		return domain.User{}, err
	}
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, internal_errors.NotFound("User %s not found", id)
	}
	return copyUser(u), nil
}

func (m *memStore) UpsertUser(ctx context.Context, p domain.UserProfileData) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpsertUser"); err != nil {
		return domain.User{}, err
	}
	u, ok := m.users[p.Id]
	if !ok {
		m.now = m.now.Add(m.tick)
		u = &domain.User{Id: p.Id, CreatedAt: m.now}
		m.users[p.Id] = u
	}
	u.Username, u.Name, u.Bio, u.Image, u.Onboarded = p.Username, p.Name, p.Bio, p.Image, true
	return copyUser(u), nil
}

func (m *memStore) filterUsers(search domain.UserSearch) []domain.User {
	needle := strings.ToLower(search.Search)
	var out []domain.User
	for _, u := range m.users {
		if u.Id == search.ExcludeId {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(u.Username), needle) && !strings.Contains(strings.ToLower(u.Name), needle) {
			continue
		}
		out = append(out, copyUser(u))
	}
	slices.SortFunc(out, func(a, b domain.User) int {
		c := a.CreatedAt.Compare(b.CreatedAt)
		if search.Sort == domain.SortDesc {
			c = -c
		}
		return cmp.Or(c, strings.Compare(a.Id, b.Id))
	})
	return out
}

func (m *memStore) SearchUsers(ctx context.Context, search domain.UserSearch) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SearchUsers"); err != nil {
		return nil, err
	}
	return window(m.filterUsers(search), domain.Page{Number: search.PageNumber, Size: search.PageSize}), nil
}

func (m *memStore) CountUsers(ctx context.Context, search domain.UserSearch) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CountUsers"); err != nil {
		return 0, err
	}
	return len(m.filterUsers(search)), nil
}

// --- Invalidator spy ---

type spyInvalidator struct {
	mu    sync.Mutex
	paths []string
}

func (s *spyInvalidator) Invalidate(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

// --- Validator mocks ---

type MockThreadValidator struct {
	textFunc func(text domain.ThreadText) error
}

func (m *MockThreadValidator) Text(text domain.ThreadText) error {
	if m.textFunc != nil {
		return m.textFunc(text)
	}
	return nil
}

type MockUserValidator struct {
	usernameFunc func(username domain.Username) error
}

func (m *MockUserValidator) Username(username domain.Username) error {
	if m.usernameFunc != nil {
		return m.usernameFunc(username)
	}
	return nil
}
