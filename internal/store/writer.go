package store

import (
	"context"
	"fmt"
	"sync"

	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
)

// CommitListener is told about every configuration that was written.
type CommitListener func(ctx context.Context, cfg schema.SiteConfiguration)

// Writer replaces the stored configuration as a whole. Writers do not
// coordinate with each other: the last commit wins.
type Writer struct {
	backend Backend

	mu        sync.RWMutex
	listeners []CommitListener
}

func NewWriter(backend Backend) *Writer {
	return &Writer{backend: backend}
}

func (w *Writer) OnCommit(listener CommitListener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, listener)
}

// Commit validates candidate, splices it between the markers of the current
// artifact and writes the artifact back in one operation.
func (w *Writer) Commit(ctx context.Context, candidate schema.SiteConfiguration) error {
	if err := schema.Validate(candidate); err != nil {
		return err
	}

	artifact, err := w.backend.ReadArtifact(ctx)
	if err != nil {
		return fmt.Errorf("read artifact for commit: %w", err)
	}
	payload, err := EncodePayload(candidate)
	if err != nil {
		return err
	}
	next, err := ReplacePayload(artifact, payload)
	if err != nil {
		return err
	}
	if err := w.backend.WriteArtifact(ctx, next); err != nil {
		return err
	}

	logger := sitelog.FromContext(ctx, "store")
	logger.Info().
		Str(sitelog.FieldEvent, "config.committed").
		Int("services", len(candidate.Services)).
		Int("areas", len(candidate.Areas)).
		Int("bytes", len(next)).
		Msg("configuration committed")

	w.mu.RLock()
	listeners := append([]CommitListener(nil), w.listeners...)
	w.mu.RUnlock()
	for _, listener := range listeners {
		listener(ctx, candidate)
	}
	return nil
}
