// Package assets turns uploaded files into stable public references.
package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
)

// DefaultExtension is used when an upload name carries no extension.
const DefaultExtension = ".jpg"

var (
	ErrAssetWriteFailed = errors.New("asset write failed")
	// ErrEmptyUpload marks a zero-byte upload. Callers treat it as "no file supplied".
	ErrEmptyUpload = errors.New("empty upload")
)

// Storage writes named objects and maps names to public references.
type Storage interface {
	Put(ctx context.Context, name string, data []byte) error
	Ref(name string) schema.AssetRef
}

// Pipeline names and stores uploads. Names carry a millisecond timestamp that
// never repeats within one pipeline.
type Pipeline struct {
	storage Storage
	now     func() time.Time
	logger  zerolog.Logger

	mu   sync.Mutex
	last int64
}

func NewPipeline(storage Storage) *Pipeline {
	return &Pipeline{
		storage: storage,
		now:     time.Now,
		logger:  sitelog.WithComponent("assets"),
	}
}

// WithClock replaces the time source. Used by tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

func (p *Pipeline) stamp() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ms := p.now().UnixMilli()
	if ms <= p.last {
		ms = p.last + 1
	}
	p.last = ms
	return ms
}

// Store writes data under a name derived from prefix and originalName and
// returns its public reference. The write has completed when Store returns.
func (p *Pipeline) Store(ctx context.Context, data []byte, originalName, prefix string) (schema.AssetRef, error) {
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	base, ext := SanitizeName(originalName)
	name := fmt.Sprintf("%s-%s-%s%s", sanitizeComponent(prefix), strconv.FormatInt(p.stamp(), 10), base, ext)

	if err := p.storage.Put(ctx, name, data); err != nil {
		p.logger.Error().Err(err).Str("name", name).Msg("asset write failed")
		return "", fmt.Errorf("%w: %s: %v", ErrAssetWriteFailed, name, err)
	}
	ref := p.storage.Ref(name)
	p.logger.Info().Str("event", "asset.stored").Str("ref", string(ref)).Int("bytes", len(data)).Msg("asset stored")
	return ref, nil
}

// SanitizeName splits an upload name into a lower-cased base and extension
// containing only [a-z0-9.-_]. A missing extension becomes DefaultExtension.
func SanitizeName(originalName string) (base, ext string) {
	name := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}
	ext = sanitizeComponent(filepath.Ext(name))
	base = sanitizeComponent(strings.TrimSuffix(name, filepath.Ext(name)))
	base = strings.Trim(base, ".")
	if ext == "" || ext == "." {
		ext = DefaultExtension
	}
	if base == "" {
		base = "file"
	}
	return base, ext
}

func sanitizeComponent(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}
