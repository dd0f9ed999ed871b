package store

import (
	"context"
	"errors"
	"fmt"

	"sitecms/api/internal/schema"
)

// ConfigStore reads the configuration out of the artifact. It holds no
// mutable state and is safe for concurrent use.
type ConfigStore struct {
	backend Backend
}

func NewConfigStore(backend Backend) *ConfigStore {
	return &ConfigStore{backend: backend}
}

func (s *ConfigStore) Load(ctx context.Context) (schema.SiteConfiguration, error) {
	artifact, err := s.backend.ReadArtifact(ctx)
	if err != nil {
		return schema.SiteConfiguration{}, err
	}
	return DecodeArtifact(artifact)
}

func (s *ConfigStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Seed writes a fresh artifact holding cfg when the backend has none yet.
// An existing artifact is left alone.
func Seed(ctx context.Context, backend Backend, cfg schema.SiteConfiguration) error {
	_, err := backend.ReadArtifact(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := schema.Validate(cfg); err != nil {
		return fmt.Errorf("seed config: %w", err)
	}
	artifact, err := NewArtifact(cfg)
	if err != nil {
		return err
	}
	if err := backend.WriteArtifact(ctx, artifact); err != nil {
		return fmt.Errorf("seed config: %w", err)
	}
	return nil
}
