package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"sitecms/api/internal/schema"
	"sitecms/api/internal/session"
)

type staticSource struct {
	cfg schema.SiteConfiguration
	err error
}

func (s staticSource) Get(context.Context) (schema.SiteConfiguration, error) {
	return s.cfg.Clone(), s.err
}

func TestManagerRestoresSessionFromSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	snapshots, err := session.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer snapshots.Close()

	h := newHarness()
	ctx := context.Background()
	first := NewManager(staticSource{cfg: galleryConfig()}, snapshots, h.deps, time.Hour)

	s, err := first.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id := s.ID()
	_, err = first.Update(ctx, id, func(s *Session) error {
		if _, err := s.SetField("company.name", "Restored Ltd"); err != nil {
			return err
		}
		if _, err := s.SetSectionText(SectionAreas, "[{"); err != nil {
			return err
		}
		if err := s.SelectHeroImage(imageB, true); err != nil {
			return err
		}
		_, err := s.AddHeroUpload("c.jpg", []byte("c"))
		return err
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// a second manager stands in for a restarted process
	second := NewManager(staticSource{cfg: schema.Seed()}, snapshots, h.deps, time.Hour)
	restored, err := second.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(s.View(), restored.View()); diff != "" {
		t.Fatalf("restored view mismatch (-want +got):\n%s", diff)
	}
	areas, _ := restored.Section(SectionAreas)
	if !areas.Invalid || areas.Text != "[{" {
		t.Fatalf("invalid section text not restored: %+v", areas)
	}
	if got := restored.PendingFiles(); len(got) != 1 || got[0] != "heroBackgroundImage-1" {
		t.Fatalf("pending hero upload not restored: %v", got)
	}
}

func TestManagerUnknownAndDiscardedSessions(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(staticSource{cfg: schema.Seed()}, session.NewMemoryStore(), newHarness().deps, time.Hour)

	if _, err := manager.Get(ctx, "edit_missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	s, err := manager.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := manager.Discard(ctx, s.ID()); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}
	if _, err := manager.Get(ctx, s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after discard, got %v", err)
	}
}

func TestManagerCreateFailsWhenConfigUnavailable(t *testing.T) {
	boom := errors.New("store offline")
	manager := NewManager(staticSource{err: boom}, session.NewMemoryStore(), newHarness().deps, time.Hour)
	if _, err := manager.Create(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestManagerUpdatePersistsAfterFailedSave(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.rec.failPut = true
	snapshots := session.NewMemoryStore()
	manager := NewManager(staticSource{cfg: schema.Seed()}, snapshots, h.deps, time.Hour)

	s, err := manager.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, err = manager.Update(ctx, s.ID(), func(s *Session) error {
		if err := s.AttachFile("companyLogo", "logo.png", []byte("l")); err != nil {
			return err
		}
		_, err := s.Save(ctx)
		return err
	})
	var failed *PersistFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *PersistFailedError from Update, got %v", err)
	}

	data, err := snapshots.Load(ctx, s.ID())
	if err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	restored, err := restore(data, h.deps)
	if err != nil {
		t.Fatalf("restore() error = %v", err)
	}
	if diff := cmp.Diff([]string{"companyLogo"}, restored.PendingFiles()); diff != "" {
		t.Fatalf("pending files mismatch (-want +got):\n%s", diff)
	}
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestManagerExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	snapshots := session.NewMemoryStore().WithClock(clock.Now)
	manager := NewManager(staticSource{cfg: schema.Seed()}, snapshots, newHarness().deps, time.Minute).WithClock(clock.Now)

	idle, err := manager.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	active, err := manager.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	clock.now = clock.now.Add(40 * time.Second)
	if _, err := manager.Update(ctx, active.ID(), func(s *Session) error {
		_, err := s.SetField("company.name", "Still Editing Ltd")
		return err
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	clock.now = clock.now.Add(40 * time.Second)
	if _, err := manager.Get(ctx, idle.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for an expired session, got %v", err)
	}
	got, err := manager.Get(ctx, active.ID())
	if err != nil {
		t.Fatalf("Get(active) error = %v", err)
	}
	if got != active {
		t.Fatal("active session should still be held in memory")
	}

	manager.mu.Lock()
	_, held := manager.live[idle.ID()]
	count := len(manager.live)
	manager.mu.Unlock()
	if held || count != 1 {
		t.Fatalf("expired session still held: held=%v live=%d", held, count)
	}
}

type flakySnapshots struct {
	*session.MemoryStore
	failSave bool
}

func (f *flakySnapshots) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	if f.failSave {
		return errors.New("redis unavailable")
	}
	return f.MemoryStore.Save(ctx, id, data, ttl)
}

func TestManagerCommittedSaveSurvivesSnapshotFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	snapshots := &flakySnapshots{MemoryStore: session.NewMemoryStore()}
	manager := NewManager(staticSource{cfg: schema.Seed()}, snapshots, h.deps, time.Hour)

	s, err := manager.Create(ctx)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	snapshots.failSave = true
	_, err = manager.Update(ctx, s.ID(), func(s *Session) error {
		_, err := s.Save(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("Update() should report the committed save, got %v", err)
	}
	if len(h.writer.commits) != 1 {
		t.Fatalf("expected one commit, got %d", len(h.writer.commits))
	}

	h.writer.err = errors.New("disk full")
	_, err = manager.Update(ctx, s.ID(), func(s *Session) error {
		_, err := s.Save(ctx)
		return err
	})
	var failed *PersistFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected the save error to win, got %v", err)
	}
}
