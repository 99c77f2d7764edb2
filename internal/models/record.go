// Package models defines data structures shared by the fetchers, normalizer and stores.
package models

import "encoding/xml"

// Unknown is the value stored for any field that could not be resolved.
const Unknown = "unknown"

// RecordSet is the GBSet document returned by efetch in XML mode.
type RecordSet struct {
	XMLName xml.Name    `xml:"GBSet"`
	Records []RawRecord `xml:"GBSeq"`
}

// RawRecord is one GenBank entry as delivered by the record-fetch service.
type RawRecord struct {
	AccessionVersion string    `xml:"GBSeq_accession-version"`
	Locus            string    `xml:"GBSeq_locus"`
	Organism         string    `xml:"GBSeq_organism"`
	UpdateDate       string    `xml:"GBSeq_update-date"`
	Definition       string    `xml:"GBSeq_definition"`
	FeatureTable     []Feature `xml:"GBSeq_feature-table>GBFeature"`
}

// Feature is an entry of the feature table. Qualifier order is preserved.
type Feature struct {
	Key        string      `xml:"GBFeature_key"`
	Location   string      `xml:"GBFeature_location"`
	Qualifiers []Qualifier `xml:"GBFeature_quals>GBQualifier"`
}

// Qualifier is a single name/value annotation of a feature.
type Qualifier struct {
	Name  string `xml:"GBQualifier_name"`
	Value string `xml:"GBQualifier_value"`
}

// NormalizedRecord is the resolved row written to the dataset.
// Every field is non-empty; unresolved fields hold Unknown.
type NormalizedRecord struct {
	Key             string `json:"key"`
	Strain          string `json:"strain"`
	Organism        string `json:"organism"`
	IsolationSource string `json:"isolation_source"`
	Country         string `json:"country"`
	Year            string `json:"year"`
}

// Columns is the dataset column order.
var Columns = []string{"key", "strain", "organism", "isolation_source", "country", "year"}

// Row returns the record's fields in Columns order.
func (r NormalizedRecord) Row() []string {
	return []string{r.Key, r.Strain, r.Organism, r.IsolationSource, r.Country, r.Year}
}
