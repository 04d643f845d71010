package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/gowebpki/jcs"
)

// EnrichmentStatus is the advisory lifecycle of an enrichment definition.
// It does not gate job queuing; a DEPRECATED enrichment can still be run.
type EnrichmentStatus string

const (
	EnrichmentDraft      EnrichmentStatus = "draft"
	EnrichmentPublished  EnrichmentStatus = "published"
	EnrichmentDeprecated EnrichmentStatus = "deprecated"
)

// VersionConfig is the semantic configuration of an enrichment version.
// Everything here except the schemas' validators and required-lists feeds
// the version's content address.
type VersionConfig struct {
	Prompt       string         `json:"prompt"`
	Model        string         `json:"model"`
	Params       map[string]any `json:"params"`
	InputSchema  Schema         `json:"input_schema"`
	OutputSchema Schema         `json:"output_schema"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// versionIDLen is the hex prefix length of the content hash used as the
// public version id. Truncating a 256-bit digest to 12 hex characters
// trades collision resistance for readability; the residual collision
// probability is accepted as negligible at the registry's scale, not
// treated as a cryptographic guarantee.
const versionIDLen = 12

// ComputeVersionID derives the content address of a version configuration.
// The hashed representation contains only the prompt, model, params, the
// fields portion of each schema, and metadata; creation time is excluded so
// identity is a pure function of configuration. Serialization goes through
// RFC 8785 canonical JSON, so key order can never change the result.
func ComputeVersionID(cfg VersionConfig) (string, error) {
	params := cfg.Params
	if params == nil {
		params = map[string]any{}
	}
	metadata := cfg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	payload := map[string]any{
		"prompt":        cfg.Prompt,
		"model":         cfg.Model,
		"params":        params,
		"input_schema":  cfg.InputSchema.Fields,
		"output_schema": cfg.OutputSchema.Fields,
		"metadata":      metadata,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("version id: marshal config: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("version id: canonicalize config: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:versionIDLen], nil
}

// EnrichmentVersion is an immutable, content-identified configuration of an
// enrichment. It is created once via NewVersion, never mutated, and
// appended to exactly one definition's version list.
type EnrichmentVersion struct {
	VersionID      string         `json:"version_id"`
	CreatedAt      time.Time      `json:"created_at"`
	PromptTemplate string         `json:"prompt_template"`
	ModelID        string         `json:"model_id"`
	Parameters     map[string]any `json:"parameters"`
	InputSchema    Schema         `json:"input_schema"`
	OutputSchema   Schema         `json:"output_schema"`
	Metadata       map[string]any `json:"metadata"`
}

// NewVersion creates a version from its configuration, assigning the
// content-addressed id.
func NewVersion(cfg VersionConfig) (*EnrichmentVersion, error) {
	id, err := ComputeVersionID(cfg)
	if err != nil {
		return nil, err
	}

	metadata := cfg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return &EnrichmentVersion{
		VersionID:      id,
		CreatedAt:      time.Now().UTC(),
		PromptTemplate: cfg.Prompt,
		ModelID:        cfg.Model,
		Parameters:     cfg.Params,
		InputSchema:    cfg.InputSchema,
		OutputSchema:   cfg.OutputSchema,
		Metadata:       metadata,
	}, nil
}

// EnrichmentDefinition is the mutable container for a named enrichment and
// its append-only, creation-ordered version list.
type EnrichmentDefinition struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Status      EnrichmentStatus     `json:"status"`
	Versions    []*EnrichmentVersion `json:"versions"`
	Metadata    map[string]any       `json:"metadata"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// NewEnrichment creates a definition in DRAFT with an empty version list.
func NewEnrichment(name, description string, metadata map[string]any) *EnrichmentDefinition {
	if metadata == nil {
		metadata = map[string]any{}
	}
	now := time.Now().UTC()
	return &EnrichmentDefinition{
		Name:        name,
		Description: description,
		Status:      EnrichmentDraft,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddVersion appends a version and bumps UpdatedAt.
func (d *EnrichmentDefinition) AddVersion(v *EnrichmentVersion) {
	d.Versions = append(d.Versions, v)
	d.UpdatedAt = time.Now().UTC()
}

// Clone returns a copy sharing no mutable state with the receiver.
// The version pointers themselves are shared: versions are immutable
// after NewVersion, only the list they live in grows.
func (d *EnrichmentDefinition) Clone() *EnrichmentDefinition {
	c := *d
	c.Versions = slices.Clone(d.Versions)
	c.Metadata = maps.Clone(d.Metadata)
	return &c
}

// Version returns the version with the given id, or nil. Lookup is a
// linear scan; version counts per enrichment are expected to stay small.
func (d *EnrichmentDefinition) Version(id string) *EnrichmentVersion {
	for _, v := range d.Versions {
		if v.VersionID == id {
			return v
		}
	}
	return nil
}

// LatestVersion returns the most recently appended version, or nil when no
// versions exist. Latest means highest index in the append-ordered list,
// not highest semantic version.
func (d *EnrichmentDefinition) LatestVersion() *EnrichmentVersion {
	if len(d.Versions) == 0 {
		return nil
	}
	return d.Versions[len(d.Versions)-1]
}
