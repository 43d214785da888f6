// internal/analysis/models.go
package analysis

import "time"

// Config holds the document-AI API settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

type verifyPhotoRequest struct {
	ImageRef string `json:"imageRef"`
}

type verifyPhotoResponse struct {
	IsCompleteAndClear bool   `json:"isCompleteAndClear"`
	Reason             string `json:"reason,omitempty"`
}

type extractContractRequest struct {
	ImageRef string `json:"imageRef"`
}

type extractDocumentRequest struct {
	ImageRef     string `json:"imageRef"`
	DocumentKind string `json:"documentKind"`
}

type extractDocumentResponse struct {
	Error string `json:"error,omitempty"`

	Name            string `json:"name,omitempty"`
	DocumentNumber  string `json:"documentNumber,omitempty"`
	SecondaryNumber string `json:"secondaryNumber,omitempty"`
	AddressLine     string `json:"addressLine,omitempty"`
	Neighborhood    string `json:"neighborhood,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	PostalCode      string `json:"postalCode,omitempty"`
}
