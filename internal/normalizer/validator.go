package normalizer

import (
	"errors"
	"strings"

	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
)

// Validation errors.
var (
	ErrNilRecord        = errors.New("record is nil")
	ErrMissingAccession = errors.New("record has no accession-version")
)

// Validator checks that a fetched record can be turned into a dataset row.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks if the record meets requirements. Only the accession is
// mandatory: it becomes the row key and part of the sequence file name.
func (v *Validator) Validate(rec *models.RawRecord) error {
	if rec == nil {
		return ErrNilRecord
	}

	if strings.TrimSpace(rec.AccessionVersion) == "" {
		return ErrMissingAccession
	}

	return nil
}
