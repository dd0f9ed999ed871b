package app

import (
	"errors"
	"fmt"
	"net/http"

	"sitecms/api/internal/assets"
	"sitecms/api/internal/editor"
	"sitecms/api/internal/leads"
	"sitecms/api/internal/schema"
	"sitecms/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

type validationDetails struct {
	Keys   []string       `json:"keys"`
	Focus  string         `json:"focus"`
	Issues []schema.Issue `json:"issues,omitempty"`
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var missing *editor.MissingFieldsError
	if errors.As(err, &missing) {
		return http.StatusUnprocessableEntity, "MISSING_FIELDS", "Some required fields are missing or invalid",
			validationDetails{Keys: missing.Keys, Focus: missing.Focus(), Issues: missing.Issues}
	}
	var invalidSection *editor.InvalidSectionError
	if errors.As(err, &invalidSection) {
		return http.StatusUnprocessableEntity, "INVALID_SECTION", "Some sections are invalid",
			validationDetails{Keys: invalidSection.Keys, Focus: invalidSection.Focus(), Issues: invalidSection.Issues}
	}
	var persist *editor.PersistFailedError
	if errors.As(err, &persist) {
		return http.StatusInternalServerError, "PERSIST_FAILED", persist.Message, nil
	}
	var invalidConfig *schema.ValidationError
	if errors.As(err, &invalidConfig) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "The configuration is invalid", invalidConfig.Issues
	}
	var invalidLead *leads.ValidationError
	if errors.As(err, &invalidLead) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Please check the highlighted fields", invalidLead.Fields
	}

	switch {
	case errors.Is(err, editor.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "Edit session not found", nil
	case errors.Is(err, editor.ErrUnknownField), errors.Is(err, editor.ErrUnknownSection):
		return http.StatusNotFound, "NOT_FOUND", err.Error(), nil
	case errors.Is(err, editor.ErrDerivedField), errors.Is(err, editor.ErrNotOptional), errors.Is(err, editor.ErrNotList),
		errors.Is(err, editor.ErrUnknownImage), errors.Is(err, editor.ErrIndexOutOfRange):
		return http.StatusBadRequest, "INVALID_EDIT", err.Error(), nil
	case errors.Is(err, assets.ErrUnknownField), errors.Is(err, assets.ErrNoSlot):
		return http.StatusBadRequest, "UNKNOWN_UPLOAD_FIELD", err.Error(), nil
	case errors.Is(err, assets.ErrEmptyUpload):
		return http.StatusBadRequest, "EMPTY_UPLOAD", "The uploaded file is empty", nil
	case errors.Is(err, assets.ErrAssetWriteFailed):
		return http.StatusInternalServerError, "ASSET_WRITE_FAILED", "Uploading files failed", nil
	case errors.Is(err, leads.ErrRelayFailed):
		return http.StatusBadGateway, "RELAY_FAILED", "Your enquiry could not be sent, please call us instead", nil
	case errors.Is(err, store.ErrConfigStructureInvalid), errors.Is(err, store.ErrConfigCorrupt), errors.Is(err, store.ErrNotFound):
		return http.StatusInternalServerError, "CONFIG_UNAVAILABLE", "The configuration is unavailable", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
