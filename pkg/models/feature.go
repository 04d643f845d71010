package models

import (
	"maps"
	"time"
)

// FeatureSet is the per-dataset overlay of enrichment outputs. Features
// maps enrichment name to the last-emitted payload for that enrichment;
// each AddFeatures call overwrites, never merges.
type FeatureSet struct {
	DatasetID string                    `json:"dataset_id"`
	Features  map[string]map[string]any `json:"features"`
	Metadata  map[string]any            `json:"metadata"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// NewFeatureSet creates an empty feature set for a dataset.
func NewFeatureSet(datasetID string) *FeatureSet {
	now := time.Now().UTC()
	return &FeatureSet{
		DatasetID: datasetID,
		Features:  map[string]map[string]any{},
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddFeatures records the payload for an enrichment, replacing any earlier
// payload under the same name.
func (f *FeatureSet) AddFeatures(enrichmentName string, features map[string]any) {
	f.Features[enrichmentName] = features
	f.UpdatedAt = time.Now().UTC()
}

// Clone returns a copy sharing no mutable state with the receiver.
// AddFeatures replaces whole payloads under the top-level map, so cloning
// that level is sufficient.
func (f *FeatureSet) Clone() *FeatureSet {
	c := *f
	c.Features = maps.Clone(f.Features)
	c.Metadata = maps.Clone(f.Metadata)
	return &c
}

// FeaturesFor returns the payload for one enrichment, or nil.
func (f *FeatureSet) FeaturesFor(enrichmentName string) map[string]any {
	return f.Features[enrichmentName]
}
