// Package normalizer turns fetched GenBank records into dataset rows.
//
// It has no network or disk dependency; the architecture test enforces that.
package normalizer

import (
	"fmt"

	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
)

// Processor validates and then resolves a record.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor() *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(),
	}
}

// Normalize transforms a raw record into its normalized form.
func (p *Processor) Normalize(rec *models.RawRecord) (models.NormalizedRecord, error) {
	if err := p.validator.Validate(rec); err != nil {
		return models.NormalizedRecord{}, fmt.Errorf("validation failed: %w", err)
	}

	return p.transformer.Transform(rec), nil
}
