// internal/models/document.go
package models

// SlotKey names one attachment point for a required document.
type SlotKey string

const (
	SlotRGFront             SlotKey = "rgFront"
	SlotRGBack              SlotKey = "rgBack"
	SlotCNHFront            SlotKey = "cnhFront"
	SlotCNHBack             SlotKey = "cnhBack"
	SlotProofOfAddress      SlotKey = "proofOfAddress"
	SlotCompanyRegistration SlotKey = "companyRegistration"
	SlotRepIDFront          SlotKey = "repIdFront"
	SlotRepIDBack           SlotKey = "repIdBack"
)

// PFOnlySlots are populated only for individual buyers.
var PFOnlySlots = []SlotKey{SlotRGFront, SlotRGBack, SlotCNHFront, SlotCNHBack}

// PJOnlySlots are populated only for company buyers.
var PJOnlySlots = []SlotKey{SlotCompanyRegistration, SlotRepIDFront, SlotRepIDBack}

// Document is one attached supporting document and, once the external
// extraction has run, its analysis result.
type Document struct {
	FileName      string            `json:"fileName,omitempty"`
	PreviewHandle string            `json:"previewHandle,omitempty"`
	StorageHandle string            `json:"storageHandle,omitempty"`
	Analysis      *DocumentAnalysis `json:"analysisResult,omitempty"`
}

// DocumentAnalysis is the field set extracted from a single document image.
// Every field is optional. A non-empty Error marks the analysis-failed
// sentinel, which is a valid non-exceptional result: the pre-fill resolver
// skips it, nothing else treats it as an error.
type DocumentAnalysis struct {
	Error string `json:"error,omitempty"`

	Name            string `json:"name,omitempty"`
	DocumentNumber  string `json:"documentNumber,omitempty"`  // primary identifier (CPF on personal IDs)
	SecondaryNumber string `json:"secondaryNumber,omitempty"` // RG / registry number
	AddressLine     string `json:"addressLine,omitempty"`
	Neighborhood    string `json:"neighborhood,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
}

// Failed reports whether this analysis carries the failure sentinel.
func (a *DocumentAnalysis) Failed() bool {
	return a == nil || a.Error != ""
}
