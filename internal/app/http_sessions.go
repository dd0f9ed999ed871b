package app

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sitecms/api/internal/editor"
	"sitecms/api/internal/schema"
)

type setFieldRequest struct {
	Value json.RawMessage `json:"value"`
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type galleryToggleRequest struct {
	Ref      schema.AssetRef `json:"ref"`
	Selected bool            `json:"selected"`
}

func (s *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.CreateSession(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleDiscardSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DiscardSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSetField(w http.ResponseWriter, r *http.Request) {
	var body setFieldRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	var items []string
	isList := json.Unmarshal(body.Value, &items) == nil && items != nil
	value, ok := fieldText(body.Value)
	if !ok && !isList {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "value must be a string, a number or a list of strings", nil)
		return
	}

	var state editor.FieldState
	_, err := s.service.UpdateSession(r.Context(), chi.URLParam(r, "id"), func(session *editor.Session) error {
		var err error
		if isList {
			state, err = session.SetList(chi.URLParam(r, "key"), items)
		} else {
			state, err = session.SetField(chi.URLParam(r, "key"), value)
		}
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// fieldText accepts the edit box content as a JSON string, or a bare JSON
// number for numeric fields. A missing value clears the field. List fields
// also take a JSON array of strings.
func fieldText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, true
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String(), true
	}
	return "", false
}

func (s *HTTPServer) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var body setEnabledRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "enabled is required", nil)
		return
	}

	var state editor.FieldState
	_, err := s.service.UpdateSession(r.Context(), chi.URLParam(r, "id"), func(session *editor.Session) error {
		var err error
		state, err = session.SetEnabled(chi.URLParam(r, "key"), *body.Enabled)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleSetSection takes the raw section text as the request body. Text that
// does not parse is kept and reported in the returned view.
func (s *HTTPServer) handleSetSection(w http.ResponseWriter, r *http.Request) {
	text, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSectionBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "section text is too large", nil)
		return
	}

	var view editor.SectionView
	_, err = s.service.UpdateSession(r.Context(), chi.URLParam(r, "id"), func(session *editor.Session) error {
		var err error
		view, err = session.SetSectionText(chi.URLParam(r, "key"), string(text))
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleHeroGallery(w http.ResponseWriter, r *http.Request) {
	var body galleryToggleRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	s.updateView(w, r, func(session *editor.Session) error {
		return session.SelectHeroImage(body.Ref, body.Selected)
	})
}

func (s *HTTPServer) handleAddHeroUpload(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.uploadedFile(w, r)
	if !ok {
		return
	}
	var index int
	session, err := s.service.UpdateSession(r.Context(), chi.URLParam(r, "id"), func(session *editor.Session) error {
		var err error
		index, err = session.AddHeroUpload(filename, data)
		return err
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"index": index, "session": session.View()})
}

func (s *HTTPServer) handleRemoveHeroUpload(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	s.updateView(w, r, func(session *editor.Session) error {
		return session.RemoveHeroUpload(index)
	})
}

func (s *HTTPServer) handleServiceGallery(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var body galleryToggleRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error(), nil)
		return
	}
	s.updateView(w, r, func(session *editor.Session) error {
		return session.ToggleServiceGallery(index, body.Ref, body.Selected)
	})
}

// handleAttachFile stages a file for the next save. An empty file clears
// whatever was staged for the field.
func (s *HTTPServer) handleAttachFile(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.uploadedFile(w, r)
	if !ok {
		return
	}
	s.updateView(w, r, func(session *editor.Session) error {
		return session.AttachFile(chi.URLParam(r, "field"), filename, data)
	})
}

func (s *HTTPServer) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.SaveSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session": view})
}

func (s *HTTPServer) updateView(w http.ResponseWriter, r *http.Request, fn func(*editor.Session) error) {
	session, err := s.service.UpdateSession(r.Context(), chi.URLParam(r, "id"), fn)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

// uploadedFile reads the multipart "file" part of a request.
func (s *HTTPServer) uploadedFile(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if err := s.parseMultipart(w, r); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error(), nil)
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "file is required", nil)
		return "", nil, false
	}
	data, err := readFormFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error(), nil)
		return "", nil, false
	}
	return headers[0].Filename, data, true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "index must be a non-negative integer", nil)
		return 0, false
	}
	return index, true
}
