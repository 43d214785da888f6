// internal/models/person.go
package models

// PersonInfo holds identity and contact data for a person. All fields are
// optional strings until the completeness checker validates them.
type PersonInfo struct {
	Name         string `json:"name,omitempty"`
	TaxID        string `json:"taxId,omitempty"` // CPF, 11 digits
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	AddressLine  string `json:"addressLine,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
}

// TeamMemberInfo is the internal staff member handling the submission.
type TeamMemberInfo struct {
	PersonInfo
	Role string `json:"role,omitempty"`
}

// CompanyInfo is present only when the buyer is a company (PJ).
type CompanyInfo struct {
	LegalName string `json:"legalName,omitempty"`
	TradeName string `json:"tradeName,omitempty"`
	TaxID     string `json:"companyTaxId,omitempty"` // CNPJ, 14 digits
}
