// internal/process/prefill/resolver.go

// Package prefill fills empty buyer/company fields from AI-extracted data.
// It never overwrites a field that already has a value, so a second pass
// over the same inputs is a no-op.
package prefill

import (
	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/common/metrics"
	"contract-wizard/internal/models"
)

const (
	personalTaxIDDigits = 11
	companyTaxIDDigits  = 14
)

type Resolver struct {
	markers MarkerTable
	logger  logger.Logger
}

func NewResolver(markers MarkerTable, log logger.Logger) *Resolver {
	return &Resolver{
		markers: markers,
		logger:  log.WithFields(map[string]interface{}{"component": "prefill"}),
	}
}

// Apply runs one full resolution pass over the state and returns the number
// of fields it filled. Document analysis outranks contract-text parsing;
// within each pass the first match per field wins and filled fields block
// further writes. Apply is idempotent.
func (r *Resolver) Apply(state *models.ProcessState) int {
	filled := 0
	filled += r.applyDocuments(state)
	filled += r.applyContractData(state)

	if filled > 0 {
		r.logger.Debug("prefill pass completed", map[string]interface{}{
			"processId":    state.ProcessID,
			"fieldsFilled": filled,
		})
	}
	return filled
}

// applyDocuments is the priority pass over per-document analysis results.
func (r *Resolver) applyDocuments(state *models.ProcessState) int {
	filled := 0

	// Buyer name/taxId: national ID front, then license front, then the
	// representative's document front.
	identityOrder := []models.SlotKey{
		models.SlotRGFront,
		models.SlotCNHFront,
		models.SlotRepIDFront,
	}

	if state.Buyer.Name == "" {
		for _, slot := range identityOrder {
			a := analysisFor(state, slot)
			if a.Failed() || a.Name == "" {
				continue
			}
			state.Buyer.Name = a.Name
			filled++
			metrics.PrefillFields.WithLabelValues("document").Inc()
			break
		}
	}
	if state.Buyer.TaxID == "" {
		for _, slot := range identityOrder {
			a := analysisFor(state, slot)
			if a.Failed() || a.DocumentNumber == "" {
				continue
			}
			state.Buyer.TaxID = a.DocumentNumber
			filled++
			metrics.PrefillFields.WithLabelValues("document").Inc()
			break
		}
	}

	// Address fields come only from the proof-of-address document.
	if a := analysisFor(state, models.SlotProofOfAddress); !a.Failed() {
		filled += fillIfEmpty(&state.Buyer.AddressLine, a.AddressLine)
		filled += fillIfEmpty(&state.Buyer.Neighborhood, a.Neighborhood)
		filled += fillIfEmpty(&state.Buyer.City, a.City)
		filled += fillIfEmpty(&state.Buyer.State, a.State)
		filled += fillIfEmpty(&state.Buyer.PostalCode, a.PostalCode)
	}

	// Company fields from the registration document.
	if state.BuyerType == models.BuyerPJ && state.Company != nil {
		if a := analysisFor(state, models.SlotCompanyRegistration); !a.Failed() {
			filled += fillIfEmpty(&state.Company.LegalName, a.Name)

			if state.Company.TaxID == "" {
				// The registration carries two candidate identifiers; the
				// CNPJ is whichever has exactly 14 digits.
				if countDigits(a.DocumentNumber) == companyTaxIDDigits {
					state.Company.TaxID = a.DocumentNumber
					filled++
					metrics.PrefillFields.WithLabelValues("document").Inc()
				} else if countDigits(a.SecondaryNumber) == companyTaxIDDigits {
					state.Company.TaxID = a.SecondaryNumber
					filled++
					metrics.PrefillFields.WithLabelValues("document").Inc()
				}
			}
		}
	}

	return filled
}

// applyContractData is the secondary pass over the extracted contract
// parties, applied only to fields the document pass left empty.
func (r *Resolver) applyContractData(state *models.ProcessState) int {
	if state.ContractData == nil {
		return 0
	}

	filled := 0
	for _, party := range state.ContractData.Parties {
		if r.markers.IsBuyerParty(party.Text) {
			if state.Buyer.Name == "" {
				if name := r.markers.ExtractName(party.Text); name != "" {
					state.Buyer.Name = name
					filled++
					metrics.PrefillFields.WithLabelValues("contract").Inc()
				}
			}
			if state.Buyer.TaxID == "" && countDigits(party.Document) == personalTaxIDDigits {
				state.Buyer.TaxID = party.Document
				filled++
				metrics.PrefillFields.WithLabelValues("contract").Inc()
			}
		}

		if state.BuyerType == models.BuyerPJ && state.Company != nil &&
			r.markers.IsCompanyParty(party.Text) {
			if state.Company.LegalName == "" {
				if name := r.markers.ExtractName(party.Text); name != "" {
					state.Company.LegalName = name
					filled++
					metrics.PrefillFields.WithLabelValues("contract").Inc()
				}
			}
			if state.Company.TaxID == "" && countDigits(party.Document) == companyTaxIDDigits {
				state.Company.TaxID = party.Document
				filled++
				metrics.PrefillFields.WithLabelValues("contract").Inc()
			}
		}
	}
	return filled
}

func analysisFor(state *models.ProcessState, slot models.SlotKey) *models.DocumentAnalysis {
	doc := state.Document(slot)
	if doc == nil {
		return nil
	}
	return doc.Analysis
}

func fillIfEmpty(target *string, value string) int {
	if *target != "" || value == "" {
		return 0
	}
	*target = value
	metrics.PrefillFields.WithLabelValues("document").Inc()
	return 1
}
