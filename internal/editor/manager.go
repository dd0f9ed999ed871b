package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
	"sitecms/api/internal/session"
)

// ConfigSource supplies the current configuration a new session starts from.
type ConfigSource interface {
	Get(ctx context.Context) (schema.SiteConfiguration, error)
}

// SnapshotStore keeps serialized sessions between requests and restarts.
type SnapshotStore interface {
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Load(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
}

// Manager creates edit sessions and keeps their snapshots current. Sessions
// held in memory expire with the same TTL as their snapshots.
type Manager struct {
	source    ConfigSource
	deps      Deps
	snapshots SnapshotStore
	ttl       time.Duration
	now       func() time.Time

	mu   sync.Mutex
	live map[string]*liveSession
}

type liveSession struct {
	session   *Session
	expiresAt time.Time
}

func NewManager(source ConfigSource, snapshots SnapshotStore, deps Deps, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	return &Manager{
		source:    source,
		deps:      deps,
		snapshots: snapshots,
		ttl:       ttl,
		now:       time.Now,
		live:      map[string]*liveSession{},
	}
}

// WithClock replaces the clock used for expiry.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create starts a session from the current configuration.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	cfg, err := m.source.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	s := New(cfg, m.deps)
	if err := m.persist(ctx, s); err != nil {
		return nil, err
	}
	m.keep(s)
	return s, nil
}

// Get returns the session with id, restoring it from its snapshot when this
// process does not hold it.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	m.evictExpired()
	entry, ok := m.live[id]
	m.mu.Unlock()
	if ok {
		return entry.session, nil
	}

	data, err := m.snapshots.Load(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	s, err := restore(data, m.deps)
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.live[id]; ok {
		return existing.session, nil
	}
	// the snapshot's remaining TTL is unknown here; a full TTL is the upper bound
	m.live[id] = &liveSession{session: s, expiresAt: m.now().Add(m.ttl)}
	return s, nil
}

// Update runs fn on the session and stores the resulting snapshot. The
// snapshot is stored even when fn fails, since a failed save still changes
// which files are pending. A snapshot failure is logged rather than returned,
// so a save that committed is not reported as failed.
func (m *Manager) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	s, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fnErr := fn(s)
	if err := m.persist(ctx, s); err != nil {
		logger := sitelog.FromContext(ctx, "editor")
		logger.Error().Err(err).Str("session", id).Msg("edit session snapshot failed")
		return s, fnErr
	}
	m.keep(s)
	return s, fnErr
}

// Discard forgets a session.
func (m *Manager) Discard(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()
	return m.snapshots.Delete(ctx, id)
}

// keep holds s in memory until its snapshot TTL runs out.
func (m *Manager) keep(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictExpired()
	m.live[s.ID()] = &liveSession{session: s, expiresAt: m.now().Add(m.ttl)}
}

// evictExpired drops sessions whose snapshots have expired. Callers hold m.mu.
func (m *Manager) evictExpired() {
	now := m.now()
	for id, entry := range m.live {
		if !now.Before(entry.expiresAt) {
			delete(m.live, id)
		}
	}
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	data, err := s.snapshot()
	if err != nil {
		return fmt.Errorf("snapshot session %s: %w", s.ID(), err)
	}
	if err := m.snapshots.Save(ctx, s.ID(), data, m.ttl); err != nil {
		return err
	}
	return nil
}

type snapshot struct {
	ID        string                   `json:"id"`
	Base      schema.SiteConfiguration `json:"base"`
	Fields    map[string]fieldValue    `json:"fields"`
	Sections  map[string]sectionState  `json:"sections"`
	Hero      heroPools                `json:"hero"`
	Files     map[string]pendingFile   `json:"files"`
	UpdatedAt time.Time                `json:"updatedAt"`
}

func (s *Session) snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		ID:        s.id,
		Base:      s.base,
		Fields:    s.fields,
		Sections:  make(map[string]sectionState, len(sectionOrder)),
		Hero:      s.hero,
		Files:     s.files,
		UpdatedAt: s.updatedAt,
	}
	for _, key := range sectionOrder {
		section, _ := s.sections.get(key)
		snap.Sections[key] = section.state()
	}
	return json.Marshal(snap)
}

func restore(data []byte, deps Deps) (*Session, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.ID == "" {
		return nil, errors.New("snapshot has no id")
	}
	s := newSession(snap.ID, deps)
	s.hydrate(snap.Base)

	for key, value := range snap.Fields {
		if _, ok := fieldIndex[key]; ok {
			s.fields[key] = value
		}
	}
	for _, key := range schema.RequiredFields {
		s.checkRequired(key)
	}
	for key, state := range snap.Sections {
		section, ok := s.sections.get(key)
		if !ok {
			continue
		}
		if err := section.restore(state); err != nil {
			return nil, fmt.Errorf("section %s: %w", key, err)
		}
	}
	s.hero = snap.Hero
	if s.hero.Selected == nil {
		s.hero.Selected = []schema.AssetRef{}
	}
	if s.hero.Uploads == nil {
		s.hero.Uploads = []heroUpload{}
	}
	if snap.Files != nil {
		s.files = snap.Files
	}
	s.updatedAt = snap.UpdatedAt
	return s, nil
}
