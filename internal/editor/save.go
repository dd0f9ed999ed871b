package editor

import (
	"context"
	"errors"
	"strings"

	"sitecms/api/internal/assets"
	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
)

// State is a step of the save protocol.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateInvalid    State = "invalid"
	StateUploading  State = "uploading"
	StatePersisting State = "persisting"
	StateSaved      State = "saved"
	StateFailed     State = "failed"
)

func (s *Session) transition(ctx context.Context, to State) {
	from := s.state
	s.state = to
	logger := sitelog.FromContext(ctx, "editor")
	logger.Debug().
		Str(sitelog.FieldSessionID, s.id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("save state")
	if s.deps.OnTransition != nil {
		s.deps.OnTransition(s.id, from, to)
	}
}

// Save validates the session, stores pending files and commits the merged
// candidate. Every violation is reported before anything is written. On any
// failure the session returns to idle with its edits intact; files that were
// stored before a failure are kept so a retry does not upload them again.
func (s *Session) Save(ctx context.Context) (schema.SiteConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transition(ctx, StateValidating)

	if missing := s.invalidFields(); len(missing) > 0 {
		return s.reject(ctx, &MissingFieldsError{Keys: missing})
	}
	if broken := s.sections.invalidKeys(); len(broken) > 0 {
		return s.reject(ctx, &InvalidSectionError{Keys: broken})
	}
	candidate, malformed, err := s.buildCandidate()
	if err != nil {
		return s.fail(ctx, "could not prepare the configuration", err)
	}
	if len(malformed) > 0 {
		return s.reject(ctx, &MissingFieldsError{Keys: malformed})
	}
	if err := schema.Validate(candidate); err != nil {
		var verr *schema.ValidationError
		if !errors.As(err, &verr) {
			return s.fail(ctx, "could not validate the configuration", err)
		}
		return s.reject(ctx, issuesError(verr.Issues))
	}

	s.transition(ctx, StateUploading)
	uploads := s.pendingUploads()
	stored, err := s.deps.Assets.StoreAll(ctx, &candidate, uploads)
	s.foldUploads(stored)
	if err != nil {
		return s.fail(ctx, "uploading files failed", err)
	}

	s.transition(ctx, StatePersisting)
	if err := s.deps.Writer.Commit(ctx, candidate); err != nil {
		return s.fail(ctx, "saving the configuration failed", err)
	}

	s.base = candidate.Clone()
	s.touch()
	s.transition(ctx, StateSaved)
	s.logger.Info().Str(sitelog.FieldEvent, "edit.saved").Int("uploads", len(stored)).Msg("edit session saved")
	s.transition(ctx, StateIdle)
	return candidate.Clone(), nil
}

func (s *Session) reject(ctx context.Context, err error) (schema.SiteConfiguration, error) {
	s.transition(ctx, StateInvalid)
	s.logger.Info().Err(err).Msg("save rejected")
	s.transition(ctx, StateIdle)
	return schema.SiteConfiguration{}, err
}

func (s *Session) fail(ctx context.Context, message string, cause error) (schema.SiteConfiguration, error) {
	s.transition(ctx, StateFailed)
	s.logger.Error().Err(cause).Msg(message)
	s.transition(ctx, StateIdle)
	return schema.SiteConfiguration{}, &PersistFailedError{Message: message, Err: cause}
}

// foldUploads moves stored references into the form so the files are no
// longer pending.
func (s *Session) foldUploads(stored []assets.Stored) {
	for _, item := range stored {
		ref := string(item.Ref)
		switch item.Field.Kind {
		case assets.FieldCompanyLogo:
			s.fields["company.logo"] = fieldValue{Text: ref, Enabled: true}
		case assets.FieldHeroVideo:
			s.fields["home.hero.backgroundVideo"] = fieldValue{Text: ref, Enabled: true}
		case assets.FieldHeroImage:
			if i, ok := s.heroUploadIndex(item.Field); ok {
				s.hero.Uploads[i] = heroUpload{Ref: item.Ref, Filename: s.hero.Uploads[i].Filename}
			}
		case assets.FieldAccreditationLogo:
			items := s.sections.accreditations.Value()
			if item.Field.Index < len(items) {
				items[item.Field.Index].Logo = item.Ref
				s.sections.accreditations.Set(items)
			}
		case assets.FieldGalleryImage:
			items := s.sections.galleryItems.Value()
			if item.Field.Index < len(items) {
				s.replaceGalleryImage(items, item.Field.Index, item.Ref)
			}
		}
		delete(s.files, item.Field.String())
	}
}

// replaceGalleryImage stores ref as gallery item i and moves the hero and
// service selections off the old image once nothing else in the gallery uses it.
func (s *Session) replaceGalleryImage(items []schema.GalleryItem, i int, ref schema.AssetRef) {
	old := items[i].Image
	items[i].Image = ref
	s.sections.galleryItems.Set(items)
	if old == "" || old == ref || refSet(galleryOptions(items))[old] {
		return
	}
	s.hero.Selected = schema.ReplaceRef(s.hero.Selected, old, ref)
	services := s.sections.services.Value()
	changed := false
	for j := range services {
		if refSet(services[j].Gallery)[old] {
			services[j].Gallery = schema.ReplaceRef(services[j].Gallery, old, ref)
			changed = true
		}
	}
	if changed {
		s.sections.services.Set(services)
	}
}

// issuesError maps schema issue paths to form keys. Field problems are
// reported ahead of section problems.
func issuesError(issues []schema.Issue) error {
	var fieldKeys, sectionKeys []string
	var fieldIssues, sectionIssues []schema.Issue
	seen := map[string]bool{}
	for _, issue := range issues {
		key, isSection := issueKey(issue.Path)
		if isSection {
			sectionIssues = append(sectionIssues, issue)
		} else {
			fieldIssues = append(fieldIssues, issue)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if isSection {
			sectionKeys = append(sectionKeys, key)
		} else {
			fieldKeys = append(fieldKeys, key)
		}
	}
	if len(fieldKeys) > 0 {
		return &MissingFieldsError{Keys: fieldKeys, Issues: fieldIssues}
	}
	return &InvalidSectionError{Keys: sectionKeys, Issues: sectionIssues}
}

func issueKey(path string) (string, bool) {
	for _, key := range sectionOrder {
		prefix := sectionPaths[key]
		if path == prefix || strings.HasPrefix(path, prefix+"[") || strings.HasPrefix(path, prefix+".") {
			return key, true
		}
	}
	return path, false
}
