package ir

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Study is the loader form of a clinical-trial study.
type Study struct {
	ID                int64            `yaml:"id"`
	NCTID             string           `yaml:"nct_id"`
	Title             string           `yaml:"title"`
	Summary           string           `yaml:"summary,omitempty"`
	OverallStatus     string           `yaml:"overall_status,omitempty"`
	Phase             string           `yaml:"phase,omitempty"`
	StudyType         string           `yaml:"study_type,omitempty"`
	StartDate         string           `yaml:"start_date,omitempty"`
	Eligibility       *Eligibility     `yaml:"eligibility,omitempty"`
	InterventionTypes []string         `yaml:"intervention_types,omitempty"`
	Descriptors       []DescriptorLink `yaml:"descriptors,omitempty"`
	FacilityIDs       []int64          `yaml:"facility_ids,omitempty"`
}

// Citation is the loader form of a literature citation.
type Citation struct {
	ID              int64            `yaml:"id"`
	PMID            string           `yaml:"pmid"`
	Title           string           `yaml:"title"`
	Abstract        string           `yaml:"abstract,omitempty"`
	PublicationDate string           `yaml:"publication_date,omitempty"`
	Descriptors     []DescriptorLink `yaml:"descriptors,omitempty"`
	AffiliationIDs  []int64          `yaml:"affiliation_ids,omitempty"`
}

// Dataset bundles records for bulk loading into a store.
// Used by the load command, the scenario harness and test fixtures.
type Dataset struct {
	Descriptors []Descriptor `yaml:"descriptors,omitempty"`
	Qualifiers  []Qualifier  `yaml:"qualifiers,omitempty"`
	Facilities  []Facility   `yaml:"facilities,omitempty"`
	Studies     []Study      `yaml:"studies,omitempty"`
	Citations   []Citation   `yaml:"citations,omitempty"`
}

// ParseDataset decodes a YAML dataset. Unknown keys are rejected so typos in
// fixtures fail loudly instead of silently dropping records.
func ParseDataset(data []byte) (*Dataset, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var ds Dataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	return &ds, nil
}

// LoadDataset reads and decodes a YAML dataset file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return ParseDataset(data)
}
