package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"sitecms/api/internal/assets"
	"sitecms/api/internal/schema"
)

func assertHero(t *testing.T, s *Session, wantImages []schema.AssetRef) {
	t.Helper()
	images, first := s.HeroImages()
	if diff := cmp.Diff(wantImages, images); diff != "" {
		t.Fatalf("backgroundImages mismatch (-want +got):\n%s", diff)
	}
	ref, ok := first.Get()
	if len(wantImages) == 0 {
		if ok {
			t.Fatalf("backgroundImage should be disabled, got %q", ref)
		}
		return
	}
	if !ok || ref != wantImages[0] {
		t.Fatalf("backgroundImage = %q enabled=%v, want %q", ref, ok, wantImages[0])
	}
}

func TestHeroDerivation(t *testing.T) {
	cfg := galleryConfig()
	cfg.Home.Hero.BackgroundImages = []schema.AssetRef{imageC}
	cfg.Home.Hero.SyncBackgroundImage()
	s := New(cfg, newHarness().deps)
	assertHero(t, s, []schema.AssetRef{imageC})

	// click order does not matter; selections follow gallery order
	if err := s.SelectHeroImage(imageB, true); err != nil {
		t.Fatalf("SelectHeroImage(B) error = %v", err)
	}
	if err := s.SelectHeroImage(imageA, true); err != nil {
		t.Fatalf("SelectHeroImage(A) error = %v", err)
	}
	assertHero(t, s, []schema.AssetRef{imageA, imageB, imageC})

	if err := s.SelectHeroImage(imageA, false); err != nil {
		t.Fatalf("SelectHeroImage(A, false) error = %v", err)
	}
	assertHero(t, s, []schema.AssetRef{imageB, imageC})

	cfgOut, err := s.Candidate()
	if err != nil {
		t.Fatalf("Candidate() error = %v", err)
	}
	if diff := cmp.Diff([]schema.AssetRef{imageB, imageC}, cfgOut.Home.Hero.BackgroundImages); diff != "" {
		t.Fatalf("candidate hero mismatch (-want +got):\n%s", diff)
	}
	if got, _ := cfgOut.Home.Hero.BackgroundImage.Get(); got != imageB {
		t.Fatalf("candidate backgroundImage = %q", got)
	}
}

func TestHeroHydrationSplitsPools(t *testing.T) {
	cfg := galleryConfig()
	cfg.Home.Hero.BackgroundImages = []schema.AssetRef{imageD, imageC, imageA}
	cfg.Home.Hero.SyncBackgroundImage()
	s := New(cfg, newHarness().deps)

	view := s.View()
	if diff := cmp.Diff([]schema.AssetRef{imageA, imageD}, view.Hero.Selected); diff != "" {
		t.Fatalf("selected pool mismatch (-want +got):\n%s", diff)
	}
	if len(view.Hero.Uploads) != 1 || view.Hero.Uploads[0].Ref != imageC || view.Hero.Uploads[0].Pending {
		t.Fatalf("hero-only pool mismatch: %+v", view.Hero.Uploads)
	}
	assertHero(t, s, []schema.AssetRef{imageA, imageD, imageC})
}

func TestPendingFirstHeroSlotIsNotReportedAsImage(t *testing.T) {
	s := New(galleryConfig(), newHarness().deps)
	if _, err := s.AddHeroUpload("c.jpg", []byte("c")); err != nil {
		t.Fatalf("AddHeroUpload() error = %v", err)
	}

	hero := s.View().Hero
	if diff := cmp.Diff([]schema.AssetRef{""}, hero.BackgroundImages); diff != "" {
		t.Fatalf("backgroundImages mismatch (-want +got):\n%s", diff)
	}
	if ref, ok := hero.BackgroundImage.Get(); ok {
		t.Fatalf("pending slot reported as backgroundImage %q", ref)
	}

	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	hero = s.View().Hero
	if ref, ok := hero.BackgroundImage.Get(); !ok || ref != "/uploads/hero-1000-c.jpg" {
		t.Fatalf("backgroundImage after save = %q enabled=%v", ref, ok)
	}
}

func TestHeroRejectsUnknownImage(t *testing.T) {
	s := New(galleryConfig(), newHarness().deps)
	if err := s.SelectHeroImage("/uploads/elsewhere.jpg", true); !errors.Is(err, ErrUnknownImage) {
		t.Fatalf("expected ErrUnknownImage, got %v", err)
	}
	if err := s.RemoveHeroUpload(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
	if _, err := s.AddHeroUpload("empty.jpg", nil); !errors.Is(err, assets.ErrEmptyUpload) {
		t.Fatalf("expected ErrEmptyUpload, got %v", err)
	}
}

func TestGalleryEditPrunesHeroSelection(t *testing.T) {
	s := New(galleryConfig(), newHarness().deps)
	for _, ref := range []schema.AssetRef{imageA, imageB, imageD} {
		if err := s.SelectHeroImage(ref, true); err != nil {
			t.Fatalf("SelectHeroImage(%s) error = %v", ref, err)
		}
	}
	if err := s.AttachFile("galleryImage-3", "d.jpg", []byte("d")); err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}

	items := s.GalleryItems()
	s.SetGalleryItems([]schema.GalleryItem{items[1], items[0]})

	assertHero(t, s, []schema.AssetRef{imageB, imageA})
	if got := s.PendingFiles(); len(got) != 0 {
		t.Fatalf("pending file for a removed gallery item should be dropped, got %v", got)
	}
}

func TestServiceGalleryFollowsGalleryOrder(t *testing.T) {
	cfg := galleryConfig()
	cfg.Services[0].Gallery = []schema.AssetRef{"/uploads/legacy.jpg"}
	s := New(cfg, newHarness().deps)

	for _, ref := range []schema.AssetRef{imageD, imageA} {
		if err := s.ToggleServiceGallery(0, ref, true); err != nil {
			t.Fatalf("ToggleServiceGallery(%s) error = %v", ref, err)
		}
	}
	want := []schema.AssetRef{imageA, imageD, "/uploads/legacy.jpg"}
	if diff := cmp.Diff(want, s.Services()[0].Gallery); diff != "" {
		t.Fatalf("service gallery mismatch (-want +got):\n%s", diff)
	}

	if err := s.ToggleServiceGallery(0, "/uploads/legacy.jpg", false); err != nil {
		t.Fatalf("deselect legacy error = %v", err)
	}
	if err := s.ToggleServiceGallery(0, "/uploads/legacy.jpg", true); !errors.Is(err, ErrUnknownImage) {
		t.Fatalf("expected ErrUnknownImage for a ref outside the gallery, got %v", err)
	}
	if err := s.ToggleServiceGallery(9, imageA, true); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestSaveUploadsBeforeCommit(t *testing.T) {
	h := newHarness()
	s := New(galleryConfig(), h.deps)
	for _, ref := range []schema.AssetRef{imageA, imageB} {
		if err := s.SelectHeroImage(ref, true); err != nil {
			t.Fatalf("SelectHeroImage() error = %v", err)
		}
	}
	if _, err := s.AddHeroUpload("C.JPG", []byte("c")); err != nil {
		t.Fatalf("AddHeroUpload() error = %v", err)
	}
	if err := s.AttachFile("companyLogo", "Logo.PNG", []byte("logo")); err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}
	if err := s.AttachFile("galleryImage-2", "new.webp", []byte("g")); err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}

	saved, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	wantEvents := []string{
		"put logo-1000-logo.png",
		"put hero-1001-c.jpg",
		"put gallery-1002-new.webp",
		"commit",
	}
	if diff := cmp.Diff(wantEvents, h.rec.events); diff != "" {
		t.Fatalf("event order mismatch (-want +got):\n%s", diff)
	}

	wantHero := []schema.AssetRef{imageA, imageB, "/uploads/hero-1001-c.jpg"}
	if diff := cmp.Diff(wantHero, saved.Home.Hero.BackgroundImages); diff != "" {
		t.Fatalf("saved hero mismatch (-want +got):\n%s", diff)
	}
	if got, _ := saved.Home.Hero.BackgroundImage.Get(); got != imageA {
		t.Fatalf("saved backgroundImage = %q", got)
	}
	if got, _ := saved.Company.Logo.Get(); got != "/uploads/logo-1000-logo.png" {
		t.Fatalf("saved logo = %q", got)
	}
	if saved.Home.Gallery.Items[2].Image != "/uploads/gallery-1002-new.webp" {
		t.Fatalf("saved gallery image = %q", saved.Home.Gallery.Items[2].Image)
	}
	if got := s.PendingFiles(); len(got) != 0 {
		t.Fatalf("no files should be pending after a save, got %v", got)
	}
	assertHero(t, s, wantHero)
}

func TestFailedUploadPreventsCommit(t *testing.T) {
	h := newHarness()
	h.rec.failPut = true
	s := New(schema.Seed(), h.deps)
	mustSet(t, s, "company.tagline", "Edited before a failed save")
	if err := s.AttachFile("companyLogo", "logo.png", []byte("logo")); err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}

	_, err := s.Save(context.Background())
	var failed *PersistFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *PersistFailedError, got %v", err)
	}
	if !errors.Is(err, assets.ErrAssetWriteFailed) {
		t.Fatalf("expected the upload cause to be wrapped, got %v", err)
	}
	if len(h.writer.commits) != 0 {
		t.Fatal("commit must not run after a failed upload")
	}
	if diff := cmp.Diff([]string{"companyLogo"}, s.PendingFiles()); diff != "" {
		t.Fatalf("pending files mismatch (-want +got):\n%s", diff)
	}
	field, _ := s.Field("company.tagline")
	if field.Value != "Edited before a failed save" {
		t.Fatalf("edits lost after failed save: %q", field.Value)
	}
	want := []State{StateValidating, StateUploading, StateFailed, StateIdle}
	if diff := cmp.Diff(want, h.transition); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestFailedCommitKeepsEditsAndStoredFiles(t *testing.T) {
	h := newHarness()
	h.writer.err = errors.New("read-only file system")
	s := New(schema.Seed(), h.deps)
	mustSet(t, s, "company.name", "Retry Me Ltd")
	if err := s.AttachFile("heroBackgroundVideo", "intro.mp4", []byte("mp4")); err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}

	_, err := s.Save(context.Background())
	var failed *PersistFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *PersistFailedError, got %v", err)
	}
	if failed.Message == "" {
		t.Fatal("PersistFailedError should carry a user-facing message")
	}

	field, _ := s.Field("company.name")
	if field.Value != "Retry Me Ltd" {
		t.Fatalf("edits lost after failed commit: %q", field.Value)
	}
	video, _ := s.Field("home.hero.backgroundVideo")
	if !video.Enabled || video.Value != "/uploads/hero-video-1000-intro.mp4" {
		t.Fatalf("stored video not folded into the session: %+v", video)
	}

	h.writer.err = nil
	saved, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("retry Save() error = %v", err)
	}
	if saved.Company.Name != "Retry Me Ltd" {
		t.Fatalf("retry saved %q", saved.Company.Name)
	}
	puts := 0
	for _, event := range h.rec.events {
		if event != "commit" {
			puts++
		}
	}
	if puts != 1 {
		t.Fatalf("retry must not upload the video again, events %v", h.rec.events)
	}
}

func TestReplacedGalleryImageKeepsSelections(t *testing.T) {
	h := newHarness()
	cfg := galleryConfig()
	cfg.Services[0].Gallery = []schema.AssetRef{imageA}
	s := New(cfg, h.deps)
	if err := s.SelectHeroImage(imageA, true); err != nil {
		t.Fatalf("SelectHeroImage() error = %v", err)
	}
	if err := s.AttachFile("galleryImage-0", "a2.jpg", []byte("a2")); err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}

	saved, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	replaced := schema.AssetRef("/uploads/gallery-1000-a2.jpg")
	if got := saved.Home.Gallery.Items[0].Image; got != replaced {
		t.Fatalf("saved gallery image = %q", got)
	}
	want := []schema.AssetRef{replaced}
	if diff := cmp.Diff(want, saved.Home.Hero.BackgroundImages); diff != "" {
		t.Fatalf("saved hero mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, saved.Services[0].Gallery); diff != "" {
		t.Fatalf("saved service gallery mismatch (-want +got):\n%s", diff)
	}

	view := s.View()
	if diff := cmp.Diff(want, view.Hero.Selected); diff != "" {
		t.Fatalf("hero selection mismatch (-want +got):\n%s", diff)
	}
	if len(view.Hero.Uploads) != 0 {
		t.Fatalf("replaced image should stay a gallery selection, got uploads %+v", view.Hero.Uploads)
	}
	if diff := cmp.Diff(want, s.Services()[0].Gallery); diff != "" {
		t.Fatalf("service gallery mismatch (-want +got):\n%s", diff)
	}

	// a fresh session from the saved configuration sees the same split
	again := New(saved, h.deps).View()
	if diff := cmp.Diff(want, again.Hero.Selected); diff != "" {
		t.Fatalf("rehydrated selection mismatch (-want +got):\n%s", diff)
	}
}

func TestAttachFileRules(t *testing.T) {
	s := New(galleryConfig(), newHarness().deps)

	if err := s.AttachFile("heroBackgroundImage-0", "h.jpg", []byte("h")); !errors.Is(err, assets.ErrUnknownField) {
		t.Errorf("hero images go through hero uploads, got %v", err)
	}
	if err := s.AttachFile("accreditationLogo-3", "a.png", []byte("a")); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}
	if err := s.AttachFile("favicon", "f.ico", []byte("f")); !errors.Is(err, assets.ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
	if err := s.AttachFile("accreditationLogo-0", "gas.png", []byte("a")); err != nil {
		t.Fatalf("AttachFile() error = %v", err)
	}
	if err := s.AttachFile("accreditationLogo-0", "gas.png", nil); err != nil {
		t.Fatalf("AttachFile(empty) error = %v", err)
	}
	if got := s.PendingFiles(); len(got) != 0 {
		t.Fatalf("zero bytes should clear the pending file, got %v", got)
	}
}
