// internal/process/validation/checker.go

// Package validation computes the list of missing or invalid fields a
// process state still needs before the wizard may advance or submit. All
// checks are pure functions of the state: no caching, no side effects.
package validation

import (
	"regexp"

	"contract-wizard/internal/models"
)

// Deficiency describes one missing or invalid field.
type Deficiency struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	CodeMissingRequired = "MISSING_REQUIRED"
	CodeInvalidFormat   = "INVALID_FORMAT"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// E.164-ish: optional +, 7-15 digits, no leading zero
	phoneRegex = regexp.MustCompile(`^[\+]?[1-9][\d]{6,14}$`)
	digitRegex = regexp.MustCompile(`\d`)
)

// MissingFields returns every deficiency blocking final submission, in a
// fixed category order: internal team member, contract source, buyer-type
// documents, buyer contact and address. An empty result means the state is
// submission-ready.
func MissingFields(state *models.ProcessState) []Deficiency {
	var out []Deficiency
	out = append(out, teamMemberChecks(state)...)
	out = append(out, contractSourceChecks(state)...)
	out = append(out, documentChecks(state)...)
	out = append(out, buyerChecks(state)...)
	return out
}

// ForStep returns the subset of checks gating a forward transition out of
// the given step. The review step onwards requires the full list.
func ForStep(state *models.ProcessState, step models.Step) []Deficiency {
	switch step {
	case models.StepInitialData:
		return teamMemberChecks(state)
	case models.StepContractSource:
		return contractSourceChecks(state)
	case models.StepDocuments:
		var out []Deficiency
		out = append(out, documentChecks(state)...)
		out = append(out, buyerChecks(state)...)
		return out
	case models.StepReview:
		return MissingFields(state)
	case models.StepPrint:
		return nil
	case models.StepSignedPhoto:
		return signedPhotoChecks(state)
	default:
		return nil
	}
}

// teamMemberChecks: the internal staff member handling the submission is
// always required.
func teamMemberChecks(state *models.ProcessState) []Deficiency {
	var out []Deficiency
	tm := state.TeamMember

	out = appendRequired(out, tm.Name, "teamMember.name", "Internal responsible name is required")
	out = appendTaxID(out, tm.TaxID, "teamMember.taxId", "Internal responsible tax id")
	out = appendPhone(out, tm.Phone, "teamMember.phone", "Internal responsible phone")
	out = appendEmail(out, tm.Email, "teamMember.email", "Internal responsible email")
	out = appendRequired(out, tm.Role, "teamMember.role", "Internal responsible role is required")
	return out
}

// contractSourceChecks validate the contract-text chain. Under "new" each
// link gates the next, so only the first missing link is reported.
func contractSourceChecks(state *models.ProcessState) []Deficiency {
	switch state.ContractSource {
	case models.SourceExisting:
		if state.ContractTemplateID == "" {
			return []Deficiency{{
				Field:   "contractTemplateId",
				Code:    CodeMissingRequired,
				Message: "A contract template must be selected",
			}}
		}
		if state.ContractData.IsEmpty() {
			return []Deficiency{{
				Field:   "extractedContractData",
				Code:    CodeMissingRequired,
				Message: "Contract data is empty for the selected template",
			}}
		}
	default: // new
		if state.ContractPhoto == nil {
			return []Deficiency{{
				Field:   "contractPhoto",
				Code:    CodeMissingRequired,
				Message: "A contract photo must be attached",
			}}
		}
		if state.PhotoVerification == nil || !state.PhotoVerification.IsCompleteAndClear {
			return []Deficiency{{
				Field:   "photoVerification",
				Code:    CodeMissingRequired,
				Message: "The contract photo has not passed the clarity check",
			}}
		}
		if state.ContractData.IsEmpty() {
			return []Deficiency{{
				Field:   "extractedContractData",
				Code:    CodeMissingRequired,
				Message: "Contract data has not been extracted yet",
			}}
		}
	}
	return nil
}

// documentChecks validate the attached document set for the buyer type.
func documentChecks(state *models.ProcessState) []Deficiency {
	var out []Deficiency

	if state.BuyerType == models.BuyerPJ {
		if state.Company == nil || state.Company.LegalName == "" {
			out = append(out, Deficiency{
				Field:   "company.legalName",
				Code:    CodeMissingRequired,
				Message: "Company legal name is required",
			})
		}
		if state.Company == nil || state.Company.TaxID == "" {
			out = append(out, Deficiency{
				Field:   "company.taxId",
				Code:    CodeMissingRequired,
				Message: "Company tax id is required",
			})
		} else if countDigits(state.Company.TaxID) != 14 {
			out = append(out, Deficiency{
				Field:   "company.taxId",
				Code:    CodeInvalidFormat,
				Message: "Company tax id must have 14 digits",
			})
		}
		if !state.HasDocument(models.SlotCompanyRegistration) {
			out = append(out, Deficiency{
				Field:   "documents.companyRegistration",
				Code:    CodeMissingRequired,
				Message: "The company registration document is required",
			})
		}
		if !state.HasDocument(models.SlotRepIDFront) || !state.HasDocument(models.SlotRepIDBack) {
			out = append(out, Deficiency{
				Field:   "documents.representativeId",
				Code:    CodeMissingRequired,
				Message: "Both sides of the representative's identity document are required",
			})
		}
	} else {
		if !hasCompletePersonalPair(state) {
			out = append(out, Deficiency{
				Field:   "documents.personalId",
				Code:    CodeMissingRequired,
				Message: "A complete personal identity document (front and back) is required",
			})
		}
	}

	if !state.HasDocument(models.SlotProofOfAddress) {
		out = append(out, Deficiency{
			Field:   "documents.proofOfAddress",
			Code:    CodeMissingRequired,
			Message: "A proof of address document is required",
		})
	}

	return out
}

// buyerChecks validate buyer (or representative) contact and address
// fields, always required.
func buyerChecks(state *models.ProcessState) []Deficiency {
	var out []Deficiency
	b := state.Buyer

	out = appendRequired(out, b.Name, "buyer.name", "Buyer name is required")
	out = appendTaxID(out, b.TaxID, "buyer.taxId", "Buyer tax id")
	out = appendPhone(out, b.Phone, "buyer.phone", "Buyer phone")
	out = appendEmail(out, b.Email, "buyer.email", "Buyer email")
	out = appendRequired(out, b.AddressLine, "buyer.addressLine", "Buyer address is required")
	out = appendRequired(out, b.Neighborhood, "buyer.neighborhood", "Buyer neighborhood is required")
	out = appendRequired(out, b.City, "buyer.city", "Buyer city is required")
	out = appendRequired(out, b.State, "buyer.state", "Buyer state is required")
	out = appendRequired(out, b.PostalCode, "buyer.postalCode", "Buyer postal code is required")
	return out
}

func signedPhotoChecks(state *models.ProcessState) []Deficiency {
	if state.SignedContractPhoto == nil {
		return []Deficiency{{
			Field:   "signedContractPhoto",
			Code:    CodeMissingRequired,
			Message: "A photo of the signed contract must be attached",
		}}
	}
	return nil
}

func hasCompletePersonalPair(state *models.ProcessState) bool {
	rg := state.HasDocument(models.SlotRGFront) && state.HasDocument(models.SlotRGBack)
	cnh := state.HasDocument(models.SlotCNHFront) && state.HasDocument(models.SlotCNHBack)
	return rg || cnh
}

func countDigits(s string) int {
	return len(digitRegex.FindAllString(s, -1))
}

func appendRequired(out []Deficiency, value, field, message string) []Deficiency {
	if value == "" {
		out = append(out, Deficiency{Field: field, Code: CodeMissingRequired, Message: message})
	}
	return out
}

func appendTaxID(out []Deficiency, value, field, label string) []Deficiency {
	if value == "" {
		return append(out, Deficiency{Field: field, Code: CodeMissingRequired, Message: label + " is required"})
	}
	if countDigits(value) != 11 {
		return append(out, Deficiency{Field: field, Code: CodeInvalidFormat, Message: label + " must have 11 digits"})
	}
	return out
}

func appendPhone(out []Deficiency, value, field, label string) []Deficiency {
	if value == "" {
		return append(out, Deficiency{Field: field, Code: CodeMissingRequired, Message: label + " is required"})
	}
	if !phoneRegex.MatchString(value) {
		return append(out, Deficiency{Field: field, Code: CodeInvalidFormat, Message: label + " is not a valid phone number"})
	}
	return out
}

func appendEmail(out []Deficiency, value, field, label string) []Deficiency {
	if value == "" {
		return append(out, Deficiency{Field: field, Code: CodeMissingRequired, Message: label + " is required"})
	}
	if !emailRegex.MatchString(value) {
		return append(out, Deficiency{Field: field, Code: CodeInvalidFormat, Message: label + " is not a valid email address"})
	}
	return out
}
