package normalizer

import (
	"strings"

	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
)

// Qualifier names read from the first feature.
const (
	qualCountry         = "country"
	qualStrain          = "strain"
	qualIsolationSource = "isolation_source"
	qualIsolate         = "isolate"
)

// Prefixes marking where a strain value came from.
const (
	IsolatePrefix    = "isolate: "
	DefinitionPrefix = "DEF: "
)

// Transformer resolves the normalized fields of a record.
type Transformer struct{}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform converts a raw record into a normalized one. It never fails:
// anything that cannot be resolved is set to models.Unknown.
func (t *Transformer) Transform(rec *models.RawRecord) models.NormalizedRecord {
	out := models.NormalizedRecord{
		Key:      orUnknown(rec.AccessionVersion),
		Organism: orUnknown(rec.Organism),
		Year:     orUnknown(yearOf(rec.UpdateDate)),
	}

	var country, strain, source string

	if len(rec.FeatureTable) > 0 {
		strainSeen := false

		for _, q := range rec.FeatureTable[0].Qualifiers {
			switch q.Name {
			case qualCountry:
				country = q.Value
			case qualStrain:
				strain = q.Value
				strainSeen = true
			case qualIsolationSource:
				source = q.Value
			case qualIsolate:
				if !strainSeen {
					strain = IsolatePrefix + q.Value
				}
			}
		}
	}

	out.Country = orUnknown(country)
	out.Strain = orUnknown(strain)
	out.IsolationSource = orUnknown(source)

	if out.Country != models.Unknown {
		out.Country = orUnknown(strings.TrimSpace(strings.SplitN(out.Country, ":", 2)[0]))
	}

	if out.Strain == models.Unknown {
		out.Strain = StrainFromDefinition(rec.Definition)
	}

	return out
}

// StrainFromDefinition extracts a strain designation from a definition line,
// trying the "strain" form before the "isolate" form.
func StrainFromDefinition(def string) string {
	if m, ok := matchStrain(def); ok {
		return DefinitionPrefix + m
	}

	if m, ok := matchIsolate(def); ok {
		return DefinitionPrefix + IsolatePrefix + m
	}

	return models.Unknown
}

// yearOf keeps the last four characters of an update date such as 12-MAR-2019.
func yearOf(date string) string {
	r := []rune(date)
	if len(r) <= 4 {
		return date
	}

	return string(r[len(r)-4:])
}

func orUnknown(s string) string {
	if s == "" {
		return models.Unknown
	}

	return s
}
