package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/nkuznetsov/linkcut/internal/models"
	"github.com/nkuznetsov/linkcut/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu     sync.RWMutex
	links  map[string]*models.Link
	nextID int64
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links:  make(map[string]*models.Link),
		nextID: 1,
	}
}

func (m *MockLinkRepository) Create(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[link.ShortCode]; exists {
		return repository.ErrCodeExists
	}

	link.ID = m.nextID
	link.CreatedAt = time.Now()
	link.UpdatedAt = link.CreatedAt
	m.nextID++

	stored := *link
	m.links[link.ShortCode] = &stored
	return nil
}

func (m *MockLinkRepository) GetByShortCode(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.links[code]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}

	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) UpdateCode(ctx context.Context, id int64, newCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[newCode]; exists {
		return repository.ErrCodeExists
	}

	for code, link := range m.links {
		if link.ID == id {
			delete(m.links, code)
			link.ShortCode = newCode
			link.UpdatedAt = time.Now()
			m.links[newCode] = link
			return nil
		}
	}
	return repository.ErrLinkNotFound
}

func (m *MockLinkRepository) UpdateExpiry(ctx context.Context, id int64, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, link := range m.links {
		if link.ID == id {
			link.ExpiresAt = expiresAt
			link.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrLinkNotFound
}

func (m *MockLinkRepository) IncrementClicks(ctx context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, exists := m.links[code]
	if !exists {
		return 0, repository.ErrLinkNotFound
	}
	if link.ExpiresAt != nil && link.ExpiresAt.Before(time.Now()) {
		return 0, repository.ErrLinkExpired
	}

	link.Clicks++
	link.UpdatedAt = time.Now()
	return link.Clicks, nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[code]; !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.links, code)
	return nil
}

// Seed inserts a link directly, bypassing the service workflow
func (m *MockLinkRepository) Seed(link *models.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link.ID == 0 {
		link.ID = m.nextID
		m.nextID++
	}
	stored := *link
	m.links[link.ShortCode] = &stored
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[code]
	if !exists {
		return nil, repository.ErrCacheMiss
	}

	copied := *link
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, code string, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *link
	m.cache[code] = &stored
	return nil
}

func (m *MockCacheRepository) IncrementClicks(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link, exists := m.cache[code]; exists {
		link.Clicks++
	}
	return nil
}

func (m *MockCacheRepository) PatchExpiry(ctx context.Context, code string, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link, exists := m.cache[code]; exists {
		link.ExpiresAt = expiresAt
	}
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, code)
	return nil
}

// Clear drops every cached entry to force cache misses
func (m *MockCacheRepository) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.Link)
}

// MockReservationRepository implements repository.ReservationRepository
// with the same add-if-absent semantics as the Redis set
type MockReservationRepository struct {
	mu    sync.Mutex
	codes map[string]bool
}

func NewMockReservationRepository() *MockReservationRepository {
	return &MockReservationRepository{
		codes: make(map[string]bool),
	}
}

func (m *MockReservationRepository) Claim(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.codes[code] {
		return false, nil
	}
	m.codes[code] = true
	return true, nil
}

func (m *MockReservationRepository) IsClaimed(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[code], nil
}

func (m *MockReservationRepository) Release(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, code)
	return nil
}

// MockRateLimitRepository implements repository.RateLimitRepository
// with in-memory fixed windows
type MockRateLimitRepository struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMockRateLimitRepository() *MockRateLimitRepository {
	return &MockRateLimitRepository{
		counters: make(map[string]int64),
	}
}

func (m *MockRateLimitRepository) Hit(ctx context.Context, identity string, limit int64, window time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[identity]++
	count := m.counters[identity]

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, remaining, nil
}

// Reset clears all counters, simulating window expiry
func (m *MockRateLimitRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = make(map[string]int64)
}
