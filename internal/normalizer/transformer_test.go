package normalizer

import (
	"testing"

	"github.com/ravexina/NCBI-fasta-extractor/internal/models"
)

func q(name, value string) models.Qualifier {
	return models.Qualifier{Name: name, Value: value}
}

func recordWith(def string, quals ...models.Qualifier) *models.RawRecord {
	return &models.RawRecord{
		AccessionVersion: "MK123456.1",
		Organism:         "Hepatitis B virus",
		UpdateDate:       "12-MAR-2019",
		Definition:       def,
		FeatureTable: []models.Feature{
			{Key: "source", Location: "1..2", Qualifiers: quals},
		},
	}
}

func TestTransformer_DirectFields(t *testing.T) {
	got := NewTransformer().Transform(recordWith(""))

	if got.Key != "MK123456.1" {
		t.Errorf("Key = %q", got.Key)
	}

	if got.Organism != "Hepatitis B virus" {
		t.Errorf("Organism = %q", got.Organism)
	}

	if got.Year != "2019" {
		t.Errorf("Year = %q, want 2019", got.Year)
	}
}

func TestTransformer_Qualifiers(t *testing.T) {
	tests := []struct {
		name  string
		quals []models.Qualifier
		want  models.NormalizedRecord
	}{
		{
			name:  "all fields present",
			quals: []models.Qualifier{q("country", "Iran"), q("strain", "KU-7"), q("isolation_source", "serum")},
			want:  models.NormalizedRecord{Country: "Iran", Strain: "KU-7", IsolationSource: "serum"},
		},
		{
			name:  "country sub-location is dropped",
			quals: []models.Qualifier{q("country", "India: Hyderabad")},
			want:  models.NormalizedRecord{Country: "India", Strain: models.Unknown, IsolationSource: models.Unknown},
		},
		{
			name:  "country with padding before the colon",
			quals: []models.Qualifier{q("country", " Viet Nam :Hanoi")},
			want:  models.NormalizedRecord{Country: "Viet Nam", Strain: models.Unknown, IsolationSource: models.Unknown},
		},
		{
			name:  "isolate is used when there is no strain",
			quals: []models.Qualifier{q("isolate", "P12")},
			want:  models.NormalizedRecord{Country: models.Unknown, Strain: "isolate: P12", IsolationSource: models.Unknown},
		},
		{
			name:  "strain after isolate wins",
			quals: []models.Qualifier{q("isolate", "P12"), q("strain", "S1")},
			want:  models.NormalizedRecord{Country: models.Unknown, Strain: "S1", IsolationSource: models.Unknown},
		},
		{
			name:  "isolate after strain is ignored",
			quals: []models.Qualifier{q("strain", "S1"), q("isolate", "P12")},
			want:  models.NormalizedRecord{Country: models.Unknown, Strain: "S1", IsolationSource: models.Unknown},
		},
		{
			name:  "duplicates are last-wins",
			quals: []models.Qualifier{q("country", "Iran"), q("country", "Iraq"), q("isolation_source", "a"), q("isolation_source", "b")},
			want:  models.NormalizedRecord{Country: "Iraq", Strain: models.Unknown, IsolationSource: "b"},
		},
		{
			name:  "unrelated qualifiers are ignored",
			quals: []models.Qualifier{q("mol_type", "genomic DNA"), q("db_xref", "taxon:10407")},
			want:  models.NormalizedRecord{Country: models.Unknown, Strain: models.Unknown, IsolationSource: models.Unknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTransformer().Transform(recordWith("no useful text here", tt.quals...))

			if got.Country != tt.want.Country {
				t.Errorf("Country = %q, want %q", got.Country, tt.want.Country)
			}

			if got.Strain != tt.want.Strain {
				t.Errorf("Strain = %q, want %q", got.Strain, tt.want.Strain)
			}

			if got.IsolationSource != tt.want.IsolationSource {
				t.Errorf("IsolationSource = %q, want %q", got.IsolationSource, tt.want.IsolationSource)
			}
		})
	}
}

func TestTransformer_StrainQualifierIsVerbatim(t *testing.T) {
	orders := [][]models.Qualifier{
		{q("strain", "ABC 1"), q("isolate", "x")},
		{q("isolate", "x"), q("strain", "ABC 1")},
		{q("isolate", "x"), q("country", "Peru"), q("strain", "ABC 1"), q("isolate", "y")},
	}

	for i, quals := range orders {
		got := NewTransformer().Transform(recordWith("virus strain OTHER, complete", quals...))
		if got.Strain != "ABC 1" {
			t.Errorf("order %d: Strain = %q, want verbatim qualifier value", i, got.Strain)
		}
	}
}

func TestTransformer_OnlyFirstFeatureIsScanned(t *testing.T) {
	rec := recordWith("")
	rec.FeatureTable = append(rec.FeatureTable, models.Feature{
		Key:        "gene",
		Qualifiers: []models.Qualifier{q("country", "Chile"), q("strain", "G2")},
	})

	got := NewTransformer().Transform(rec)
	if got.Country != models.Unknown || got.Strain != models.Unknown {
		t.Errorf("second feature leaked into result: %+v", got)
	}
}

func TestTransformer_EmptyRecord(t *testing.T) {
	got := NewTransformer().Transform(&models.RawRecord{})

	want := models.NormalizedRecord{
		Key:             models.Unknown,
		Strain:          models.Unknown,
		Organism:        models.Unknown,
		IsolationSource: models.Unknown,
		Country:         models.Unknown,
		Year:            models.Unknown,
	}

	if got != want {
		t.Errorf("Transform(empty) = %+v, want %+v", got, want)
	}
}

func TestTransformer_DefinitionFallback(t *testing.T) {
	rec := recordWith("Hepatitis B virus strain XYZ123. partial genome")

	got := NewTransformer().Transform(rec)
	if got.Strain != "DEF: XYZ123" {
		t.Errorf("Strain = %q, want %q", got.Strain, "DEF: XYZ123")
	}
}

func TestYearOf(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"12-MAR-2019", "2019"},
		{"01-JAN-1999", "1999"},
		{"2020", "2020"},
		{"99", "99"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := yearOf(tt.in); got != tt.want {
			t.Errorf("yearOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
