package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitecms/api/internal/schema"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

func fixedClock() time.Time { return fixedNow }

type memoryStorage struct {
	objects map[string][]byte
	names   []string
	failOn  int // fail the nth Put (1-based); 0 never fails
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (m *memoryStorage) Put(_ context.Context, name string, data []byte) error {
	if m.failOn > 0 && len(m.names)+1 == m.failOn {
		return errors.New("disk full")
	}
	m.objects[name] = append([]byte(nil), data...)
	m.names = append(m.names, name)
	return nil
}

func (m *memoryStorage) Ref(name string) schema.AssetRef {
	return schema.AssetRef("/uploads/" + name)
}

func TestStoreSameNameTwiceGivesDistinctRefs(t *testing.T) {
	dir := t.TempDir()
	pipeline := NewPipeline(NewDiskStorage(dir, "/uploads/")).WithClock(fixedClock)
	ctx := context.Background()

	first, err := pipeline.Store(ctx, []byte("png-one"), "Logo.PNG", "logo")
	require.NoError(t, err)
	second, err := pipeline.Store(ctx, []byte("png-two"), "Logo.PNG", "logo")
	require.NoError(t, err)

	assert.Equal(t, schema.AssetRef("/uploads/logo-1700000000000-logo.png"), first)
	assert.Equal(t, schema.AssetRef("/uploads/logo-1700000000001-logo.png"), second)

	data, err := os.ReadFile(filepath.Join(dir, "logo-1700000000001-logo.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-two", string(data))
}

func TestStoreRejectsEmptyUpload(t *testing.T) {
	storage := newMemoryStorage()
	_, err := NewPipeline(storage).Store(context.Background(), nil, "a.png", "logo")
	require.ErrorIs(t, err, ErrEmptyUpload)
	assert.Empty(t, storage.names)
}

func TestStoreWrapsWriteFailure(t *testing.T) {
	storage := newMemoryStorage()
	storage.failOn = 1
	_, err := NewPipeline(storage).Store(context.Background(), []byte("x"), "a.png", "logo")
	require.ErrorIs(t, err, ErrAssetWriteFailed)
}

func TestDiskStorageNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	storage := NewDiskStorage(dir, "/uploads")
	ctx := context.Background()
	require.NoError(t, storage.Put(ctx, "a.jpg", []byte("first")))
	require.Error(t, storage.Put(ctx, "a.jpg", []byte("second")))

	data, err := os.ReadFile(filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		base string
		ext  string
	}{
		{in: "Logo.PNG", base: "logo", ext: ".png"},
		{in: "My Photo (1).jpeg", base: "myphoto1", ext: ".jpeg"},
		{in: "../../etc/passwd", base: "passwd", ext: ".jpg"},
		{in: `C:\Users\cam\Van.webp`, base: "van", ext: ".webp"},
		{in: "", base: "file", ext: ".jpg"},
		{in: "ÄÖÜ.gif", base: "file", ext: ".gif"},
		{in: "archive.tar.gz", base: "archive.tar", ext: ".gz"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			base, ext := SanitizeName(tt.in)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		name    string
		want    Field
		wantErr bool
	}{
		{name: "companyLogo", want: Field{Kind: FieldCompanyLogo}},
		{name: "heroBackgroundVideo", want: Field{Kind: FieldHeroVideo}},
		{name: "heroBackgroundImage-2", want: Field{Kind: FieldHeroImage, Index: 2}},
		{name: "accreditationLogo-0", want: Field{Kind: FieldAccreditationLogo}},
		{name: "galleryImage-11", want: Field{Kind: FieldGalleryImage, Index: 11}},
		{name: "galleryImage-01", wantErr: true},
		{name: "galleryImage--1", wantErr: true},
		{name: "galleryImage", wantErr: true},
		{name: "companyLogo-1", wantErr: true},
		{name: "favicon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseField(tt.name)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.name, got.String())
		})
	}
}

func TestApplyHeroImageKeepsBackgroundInSync(t *testing.T) {
	cfg := schema.Seed()
	cfg.Home.Hero.BackgroundImages = []schema.AssetRef{"/a.jpg"}
	cfg.Home.Hero.SyncBackgroundImage()

	require.NoError(t, Apply(&cfg, Field{Kind: FieldHeroImage, Index: 1}, "/b.jpg"))
	assert.Equal(t, []schema.AssetRef{"/a.jpg", "/b.jpg"}, cfg.Home.Hero.BackgroundImages)

	require.NoError(t, Apply(&cfg, Field{Kind: FieldHeroImage, Index: 0}, "/c.jpg"))
	ref, ok := cfg.Home.Hero.BackgroundImage.Get()
	require.True(t, ok)
	assert.Equal(t, schema.AssetRef("/c.jpg"), ref)

	require.Error(t, Apply(&cfg, Field{Kind: FieldHeroImage, Index: 5}, "/d.jpg"))
	require.ErrorIs(t, Apply(&cfg, Field{Kind: FieldGalleryImage, Index: 0}, "/e.jpg"), ErrNoSlot)
}

func TestApplyGalleryImageMovesSelections(t *testing.T) {
	cfg := schema.Seed()
	cfg.Home.Gallery.Items = []schema.GalleryItem{
		{Image: "/a.jpg", Caption: "A"},
		{Image: "/b.jpg", Caption: "B"},
		{Image: "/b.jpg", Caption: "B again"},
	}
	cfg.Home.Hero.BackgroundImages = []schema.AssetRef{"/a.jpg", "/b.jpg"}
	cfg.Home.Hero.SyncBackgroundImage()
	cfg.Services[0].Gallery = []schema.AssetRef{"/b.jpg", "/a.jpg"}

	require.NoError(t, Apply(&cfg, Field{Kind: FieldGalleryImage, Index: 0}, "/a2.jpg"))
	assert.Equal(t, schema.AssetRef("/a2.jpg"), cfg.Home.Gallery.Items[0].Image)
	assert.Equal(t, []schema.AssetRef{"/a2.jpg", "/b.jpg"}, cfg.Home.Hero.BackgroundImages)
	assert.Equal(t, []schema.AssetRef{"/b.jpg", "/a2.jpg"}, cfg.Services[0].Gallery)
	ref, ok := cfg.Home.Hero.BackgroundImage.Get()
	require.True(t, ok)
	assert.Equal(t, schema.AssetRef("/a2.jpg"), ref)

	// another item still shows /b.jpg, so selections of it stay
	require.NoError(t, Apply(&cfg, Field{Kind: FieldGalleryImage, Index: 1}, "/b2.jpg"))
	assert.Equal(t, []schema.AssetRef{"/a2.jpg", "/b.jpg"}, cfg.Home.Hero.BackgroundImages)
	assert.Equal(t, []schema.AssetRef{"/b.jpg", "/a2.jpg"}, cfg.Services[0].Gallery)
}

func TestStoreAllOrdersAndAppliesUploads(t *testing.T) {
	cfg := schema.Seed()
	cfg.Home.Gallery.Items = []schema.GalleryItem{{Caption: "Loft"}, {Caption: "Kitchen"}}
	storage := newMemoryStorage()
	pipeline := NewPipeline(storage).WithClock(fixedClock)

	stored, err := pipeline.StoreAll(context.Background(), &cfg, []Upload{
		{Field: "galleryImage-1", Filename: "kitchen.jpg", Data: []byte("k")},
		{Field: "heroBackgroundImage-0", Filename: "hero.jpg", Data: []byte("h")},
		{Field: "galleryImage-0", Filename: "loft.jpg", Data: nil},
		{Field: "companyLogo", Filename: "logo.svg", Data: []byte("<svg/>")},
	})
	require.NoError(t, err)
	require.Len(t, stored, 3)

	assert.Equal(t, []string{
		"logo-1700000000000-logo.svg",
		"hero-1700000000001-hero.jpg",
		"gallery-1700000000002-kitchen.jpg",
	}, storage.names)

	logo, ok := cfg.Company.Logo.Get()
	require.True(t, ok)
	assert.Equal(t, schema.AssetRef("/uploads/logo-1700000000000-logo.svg"), logo)
	assert.Equal(t, []schema.AssetRef{"/uploads/hero-1700000000001-hero.jpg"}, cfg.Home.Hero.BackgroundImages)
	assert.Equal(t, schema.AssetRef(""), cfg.Home.Gallery.Items[0].Image)
	assert.Equal(t, schema.AssetRef("/uploads/gallery-1700000000002-kitchen.jpg"), cfg.Home.Gallery.Items[1].Image)
}

func TestStoreAllChecksFieldsBeforeWriting(t *testing.T) {
	cfg := schema.Seed()
	storage := newMemoryStorage()
	pipeline := NewPipeline(storage)

	_, err := pipeline.StoreAll(context.Background(), &cfg, []Upload{
		{Field: "companyLogo", Filename: "logo.png", Data: []byte("l")},
		{Field: "favicon", Filename: "f.ico", Data: []byte("f")},
	})
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Empty(t, storage.names)

	_, err = pipeline.StoreAll(context.Background(), &cfg, []Upload{
		{Field: "companyLogo", Filename: "logo.png", Data: []byte("l")},
		{Field: "galleryImage-4", Filename: "g.png", Data: []byte("g")},
	})
	require.ErrorIs(t, err, ErrNoSlot)
	assert.Empty(t, storage.names)
}

func TestStoreAllStopsAtFirstFailure(t *testing.T) {
	cfg := schema.Seed()
	storage := newMemoryStorage()
	storage.failOn = 2
	pipeline := NewPipeline(storage).WithClock(fixedClock)

	stored, err := pipeline.StoreAll(context.Background(), &cfg, []Upload{
		{Field: "companyLogo", Filename: "logo.png", Data: []byte("l")},
		{Field: "heroBackgroundVideo", Filename: "intro.mp4", Data: []byte("v")},
		{Field: "heroBackgroundImage-0", Filename: "h.jpg", Data: []byte("h")},
	})
	require.ErrorIs(t, err, ErrAssetWriteFailed)
	require.Len(t, stored, 1)
	assert.Equal(t, FieldCompanyLogo, stored[0].Field.Kind)
	assert.False(t, cfg.Home.Hero.BackgroundVideo.Enabled())
	assert.Empty(t, cfg.Home.Hero.BackgroundImages)
}
