// internal/models/contract.go
package models

// PhotoRef points at an uploaded image. Storage mechanics live outside the
// core; the wizard only tracks handles.
type PhotoRef struct {
	PreviewHandle string `json:"previewHandle,omitempty"`
	FileName      string `json:"fileName,omitempty"`
}

// PhotoVerification is the result of the external clarity check over the
// contract photo.
type PhotoVerification struct {
	IsCompleteAndClear bool   `json:"isCompleteAndClear"`
	Reason             string `json:"reason,omitempty"`
}

// ContractParty is one party line extracted from the contract text: the raw
// party text plus the document number found next to it, if any.
type ContractParty struct {
	Text     string `json:"text,omitempty"`
	Document string `json:"document,omitempty"`
}

// ContractData is the structured record extracted from the contract photo,
// or copied from a selected template. All fields optional.
type ContractData struct {
	Parties      []ContractParty `json:"parties,omitempty"`
	Subject      string          `json:"subject,omitempty"`
	Price        string          `json:"price,omitempty"`
	PaymentTerms string          `json:"paymentTerms,omitempty"`
	Term         string          `json:"term,omitempty"`
	SigningPlace string          `json:"signingPlace,omitempty"`
	SigningDate  string          `json:"signingDate,omitempty"`
	Venue        string          `json:"venue,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

// IsEmpty reports whether no field of the record is populated. The wizard
// may not reach the review step while the extracted data is empty.
func (c *ContractData) IsEmpty() bool {
	if c == nil {
		return true
	}
	if len(c.Parties) > 0 {
		return false
	}
	return c.Subject == "" && c.Price == "" && c.PaymentTerms == "" &&
		c.Term == "" && c.SigningPlace == "" && c.SigningDate == "" &&
		c.Venue == "" && c.Notes == ""
}
