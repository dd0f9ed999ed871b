package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"sitecms/api/internal/schema"
)

const (
	BeginMarker = "/* @site-config:begin */"
	EndMarker   = "/* @site-config:end */"
)

var (
	ErrConfigCorrupt          = errors.New("config corrupt")
	ErrConfigStructureInvalid = errors.New("config structure invalid")
	ErrNotFound               = errors.New("config artifact not found")
)

// span locates the payload between the first begin marker and the first end
// marker after it. Offsets index into artifact.
func span(artifact []byte) (start, end int, ok bool) {
	begin := bytes.Index(artifact, []byte(BeginMarker))
	if begin < 0 {
		return 0, 0, false
	}
	start = begin + len(BeginMarker)
	rel := bytes.Index(artifact[start:], []byte(EndMarker))
	if rel < 0 {
		return 0, 0, false
	}
	return start, start + rel, true
}

// DecodeArtifact extracts and strictly decodes the configuration payload.
func DecodeArtifact(artifact []byte) (schema.SiteConfiguration, error) {
	start, end, ok := span(artifact)
	if !ok {
		return schema.SiteConfiguration{}, fmt.Errorf("%w: markers not found", ErrConfigCorrupt)
	}
	payload := bytes.TrimSpace(artifact[start:end])

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	var cfg schema.SiteConfiguration
	if err := decoder.Decode(&cfg); err != nil {
		return schema.SiteConfiguration{}, fmt.Errorf("%w: %v", ErrConfigCorrupt, err)
	}
	if decoder.More() {
		return schema.SiteConfiguration{}, fmt.Errorf("%w: trailing data after payload", ErrConfigCorrupt)
	}
	return cfg, nil
}

// EncodePayload renders cfg the way it is stored between the markers.
func EncodePayload(cfg schema.SiteConfiguration) ([]byte, error) {
	payload, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return payload, nil
}

// ReplacePayload returns a copy of artifact with the text between the markers
// replaced by payload. Bytes outside the markers are kept as they are.
func ReplacePayload(artifact, payload []byte) ([]byte, error) {
	start, end, ok := span(artifact)
	if !ok {
		return nil, fmt.Errorf("%w: markers %q and %q not found", ErrConfigStructureInvalid, BeginMarker, EndMarker)
	}
	out := make([]byte, 0, len(artifact)-(end-start)+len(payload)+2)
	out = append(out, artifact[:start]...)
	out = append(out, '\n')
	out = append(out, payload...)
	out = append(out, '\n')
	out = append(out, artifact[end:]...)
	return out, nil
}

// NewArtifact renders a fresh TypeScript module holding cfg.
func NewArtifact(cfg schema.SiteConfiguration) ([]byte, error) {
	payload, err := EncodePayload(cfg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("// Site configuration. The block between the markers is rewritten by the site editor.\n")
	buf.WriteString("import type { SiteConfig } from \"./types\";\n\n")
	buf.WriteString("export const siteConfig: SiteConfig = " + BeginMarker + "\n")
	buf.Write(payload)
	buf.WriteString("\n" + EndMarker + ";\n\n")
	buf.WriteString("export default siteConfig;\n")
	return buf.Bytes(), nil
}
