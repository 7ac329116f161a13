package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/internal/repository"
)

// memoryStore is an in-memory listing, checkpoint and catalog store.
type memoryStore struct {
	mu          sync.Mutex
	items       map[entity.ItemKey]entity.CatalogItem
	listings    map[int64]entity.Listing
	links       map[entity.ItemKey][]int64
	checkpoint  *entity.Checkpoint
	commits     []entity.ItemKey
	commitErr   error
	recent      []entity.PricePoint
	recentN     int
	onClear     func()
	clears      int
	loadedTimes int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		items:    make(map[entity.ItemKey]entity.CatalogItem),
		listings: make(map[int64]entity.Listing),
		links:    make(map[entity.ItemKey][]int64),
	}
}

func (m *memoryStore) EnsureCatalogLoaded(_ context.Context, c *entity.Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadedTimes++
	for _, u := range c.Units() {
		if _, ok := m.items[u.Key()]; !ok {
			m.items[u.Key()] = u
		}
	}
	return nil
}

func (m *memoryStore) LastKnownListingDate(_ context.Context, key entity.ItemKey) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *time.Time
	for _, id := range m.links[key] {
		d := m.listings[id].SaleDate
		if latest == nil || d.After(*latest) {
			latest = &d
		}
	}
	return latest, nil
}

func (m *memoryStore) CommitListings(_ context.Context, key entity.ItemKey, listings []entity.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.commitErr != nil {
		return m.commitErr
	}
	for _, l := range listings {
		if _, ok := m.listings[l.ExternalID]; !ok {
			m.listings[l.ExternalID] = l
		}
		m.links[key] = append(m.links[key], l.ExternalID)
	}
	m.commits = append(m.commits, key)
	m.checkpoint = &entity.Checkpoint{
		CollectionName:     key.CollectionName,
		CollectionSequence: key.CollectionSequence,
		ItemSequence:       key.ItemSequence,
		Variant:            key.Variant,
	}
	return nil
}

func (m *memoryStore) LoadCheckpoint(context.Context) (*entity.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkpoint == nil {
		return nil, nil
	}
	cp := *m.checkpoint
	return &cp, nil
}

func (m *memoryStore) ClearCheckpoint(context.Context) error {
	m.mu.Lock()
	m.checkpoint = nil
	m.clears++
	onClear := m.onClear
	m.mu.Unlock()
	if onClear != nil {
		onClear()
	}
	return nil
}

func (m *memoryStore) ListItems(_ context.Context, f repository.ItemFilter) ([]entity.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.CatalogItem
	for _, it := range m.items {
		if f.CollectionName == "" || it.CollectionName == f.CollectionName {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memoryStore) GetItem(_ context.Context, key entity.ItemKey) (*entity.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok {
		return nil, repository.ErrItemNotFound
	}
	return &it, nil
}

func (m *memoryStore) ItemVariants(_ context.Context, collection string, seq float64, itemSeq int) ([]entity.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.CatalogItem
	for _, it := range m.items {
		if it.CollectionName == collection && it.CollectionSequence == seq && it.ItemSequence == itemSeq {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil, repository.ErrItemNotFound
	}
	return out, nil
}

func (m *memoryStore) ListingsFor(_ context.Context, key entity.ItemKey, since *time.Time) ([]entity.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Listing
	for _, id := range m.links[key] {
		l := m.listings[id]
		if since != nil && l.SaleDate.Before(*since) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *memoryStore) RecentPrices(_ context.Context, perItem int) ([]entity.PricePoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recentN = perItem
	return m.recent, nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }

// memoryCache records invalidations.
type memoryCache struct {
	mu          sync.Mutex
	entries     map[string]*entity.AggregateStats
	versions    map[entity.ItemKey]int64
	invalidated []entity.ItemKey
	getErr      error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries:  make(map[string]*entity.AggregateStats),
		versions: make(map[entity.ItemKey]int64),
	}
}

func cacheKey(key entity.ItemKey, since *time.Time) string {
	if since == nil {
		return key.String()
	}
	return key.String() + "@" + since.Format(time.DateOnly)
}

func (c *memoryCache) Get(_ context.Context, key entity.ItemKey, since *time.Time) (*entity.AggregateStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.entries[cacheKey(key, since)], nil
}

func (c *memoryCache) Version(_ context.Context, key entity.ItemKey) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[key], nil
}

func (c *memoryCache) Set(_ context.Context, key entity.ItemKey, since *time.Time, version int64, s *entity.AggregateStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[key] != version {
		return nil
	}
	c.entries[cacheKey(key, since)] = s
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, key entity.ItemKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, key)
	c.versions[key]++
	for k := range c.entries {
		if k == key.String() || strings.HasPrefix(k, key.String()+"@") {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }

// stubSession is a browser session that only records its lifecycle.
type stubSession struct {
	closed bool
	shot   []byte
}

func (s *stubSession) Navigate(context.Context, string) error { return nil }
func (s *stubSession) FindOne(context.Context, repository.Locator) (repository.Element, error) {
	return nil, repository.ErrElementNotFound
}
func (s *stubSession) FindAll(context.Context, repository.Locator) ([]repository.Element, error) {
	return nil, nil
}
func (s *stubSession) Screenshot(context.Context) ([]byte, error) {
	if s.shot == nil {
		return nil, errors.New("no screenshot")
	}
	return s.shot, nil
}
func (s *stubSession) Close() error {
	s.closed = true
	return nil
}

type stubFactory struct {
	mu       sync.Mutex
	sessions []*stubSession
	shot     []byte
}

func (f *stubFactory) Open(context.Context) (repository.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &stubSession{shot: f.shot}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// scriptedExtractor returns canned results per item key.
type scriptedExtractor struct {
	mu         sync.Mutex
	results    map[entity.ItemKey][]entity.Listing
	failures   map[entity.ItemKey]error
	calls      []entity.ItemKey
	watermarks map[entity.ItemKey]*time.Time
}

func newScriptedExtractor() *scriptedExtractor {
	return &scriptedExtractor{
		results:    make(map[entity.ItemKey][]entity.Listing),
		failures:   make(map[entity.ItemKey]error),
		watermarks: make(map[entity.ItemKey]*time.Time),
	}
}

func (e *scriptedExtractor) Extract(_ context.Context, _ repository.Session, item entity.CatalogItem, watermark *time.Time) (*Extraction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := item.Key()
	e.calls = append(e.calls, key)
	e.watermarks[key] = watermark
	if err, ok := e.failures[key]; ok {
		delete(e.failures, key)
		return nil, err
	}
	return &Extraction{Listings: e.results[key], State: StateDone, Pages: 1}, nil
}
