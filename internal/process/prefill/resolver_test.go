// internal/process/prefill/resolver_test.go
package prefill

import (
	"testing"

	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestResolver(t *testing.T) *Resolver {
	return NewResolver(DefaultMarkers(), logger.NewTestLogger(t))
}

func attachAnalysis(state *models.ProcessState, slot models.SlotKey, a *models.DocumentAnalysis) {
	state.Documents[slot] = &models.Document{
		FileName: string(slot) + ".jpg",
		Analysis: a,
	}
}

// ==========================
// Document Pass Tests
// ==========================

func TestResolver_IdentityPriorityOrder(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()

	attachAnalysis(state, models.SlotCNHFront, &models.DocumentAnalysis{
		Name:           "CNH NAME",
		DocumentNumber: "111.111.111-11",
	})
	attachAnalysis(state, models.SlotRGFront, &models.DocumentAnalysis{
		Name:           "RG NAME",
		DocumentNumber: "222.222.222-22",
	})

	filled := r.Apply(state)

	// The national ID front outranks the license front.
	assert.Equal(t, "RG NAME", state.Buyer.Name)
	assert.Equal(t, "222.222.222-22", state.Buyer.TaxID)
	assert.Equal(t, 2, filled)
}

func TestResolver_FailedAnalysisIsSkipped(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()

	attachAnalysis(state, models.SlotRGFront, &models.DocumentAnalysis{
		Error: "image unreadable",
		Name:  "SHOULD NOT BE USED",
	})
	attachAnalysis(state, models.SlotCNHFront, &models.DocumentAnalysis{
		Name: "CNH NAME",
	})

	r.Apply(state)
	assert.Equal(t, "CNH NAME", state.Buyer.Name)
}

func TestResolver_PendingAnalysisIsSkipped(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()

	// Document attached but analysis not yet delivered.
	state.Documents[models.SlotRGFront] = &models.Document{FileName: "rg.jpg"}

	filled := r.Apply(state)
	assert.Zero(t, filled)
	assert.Empty(t, state.Buyer.Name)
}

func TestResolver_AddressComesOnlyFromProofOfAddress(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()

	// Identity documents may carry an address; it must be ignored.
	attachAnalysis(state, models.SlotRGFront, &models.DocumentAnalysis{
		Name:        "RG NAME",
		AddressLine: "WRONG STREET 1",
	})
	attachAnalysis(state, models.SlotProofOfAddress, &models.DocumentAnalysis{
		AddressLine:  "Rua das Flores 100",
		Neighborhood: "Centro",
		City:         "Sao Paulo",
		State:        "SP",
		PostalCode:   "01000-000",
	})

	r.Apply(state)

	assert.Equal(t, "Rua das Flores 100", state.Buyer.AddressLine)
	assert.Equal(t, "Centro", state.Buyer.Neighborhood)
	assert.Equal(t, "Sao Paulo", state.Buyer.City)
	assert.Equal(t, "SP", state.Buyer.State)
	assert.Equal(t, "01000-000", state.Buyer.PostalCode)
}

func TestResolver_CompanyTaxID_PicksFourteenDigitCandidate(t *testing.T) {
	tests := []struct {
		name      string
		primary   string
		secondary string
		expected  string
	}{
		{
			name:     "primary is the company id",
			primary:  "12.345.678/0001-95",
			expected: "12.345.678/0001-95",
		},
		{
			name:      "primary is a state registration, secondary wins",
			primary:   "110.042.490.114",
			secondary: "12.345.678/0001-95",
			expected:  "12.345.678/0001-95",
		},
		{
			name:      "neither candidate has fourteen digits",
			primary:   "123",
			secondary: "4567",
			expected:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := createTestResolver(t)
			state := models.NewProcessState()
			state.BuyerType = models.BuyerPJ
			state.Company = &models.CompanyInfo{}

			attachAnalysis(state, models.SlotCompanyRegistration, &models.DocumentAnalysis{
				Name:            "ACME COMERCIO LTDA",
				DocumentNumber:  tt.primary,
				SecondaryNumber: tt.secondary,
			})

			r.Apply(state)

			assert.Equal(t, "ACME COMERCIO LTDA", state.Company.LegalName)
			assert.Equal(t, tt.expected, state.Company.TaxID)
		})
	}
}

func TestResolver_CompanyPass_SkippedForPFBuyer(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()

	attachAnalysis(state, models.SlotCompanyRegistration, &models.DocumentAnalysis{
		Name:           "ACME COMERCIO LTDA",
		DocumentNumber: "12.345.678/0001-95",
	})

	r.Apply(state)
	assert.Nil(t, state.Company)
}

// ==========================
// Contract Pass Tests
// ==========================

func TestResolver_ContractParties_FillBuyer(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()
	state.ContractData = &models.ContractData{
		Parties: []models.ContractParty{
			{Text: "ACME COMERCIO LTDA, VENDEDORA", Document: "12.345.678/0001-95"},
			{Text: "CLIENTE EXEMPLO, COMO COMPRADOR", Document: "529.982.247-25"},
		},
	}

	r.Apply(state)

	assert.Equal(t, "CLIENTE EXEMPLO", state.Buyer.Name)
	assert.Equal(t, "529.982.247-25", state.Buyer.TaxID)
}

func TestResolver_ContractParty_WrongDigitCountNotUsedAsTaxID(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()
	state.ContractData = &models.ContractData{
		Parties: []models.ContractParty{
			// A 14-digit number next to a buyer entry is not a personal id.
			{Text: "JOAO PEREIRA, COMO COMPRADOR", Document: "12.345.678/0001-95"},
		},
	}

	r.Apply(state)

	assert.Equal(t, "JOAO PEREIRA", state.Buyer.Name)
	assert.Empty(t, state.Buyer.TaxID)
}

func TestResolver_ContractParties_FillCompanyForPJ(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()
	state.BuyerType = models.BuyerPJ
	state.Company = &models.CompanyInfo{}
	state.ContractData = &models.ContractData{
		Parties: []models.ContractParty{
			{Text: "ACME COMERCIO LTDA, VENDEDORA", Document: "12.345.678/0001-95"},
		},
	}

	r.Apply(state)

	assert.Equal(t, "ACME COMERCIO LTDA", state.Company.LegalName)
	assert.Equal(t, "12.345.678/0001-95", state.Company.TaxID)
}

// ==========================
// Precedence and Idempotence Tests
// ==========================

func TestResolver_DocumentsOutrankContractText(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()

	attachAnalysis(state, models.SlotRGFront, &models.DocumentAnalysis{
		Name:           "RG NAME",
		DocumentNumber: "529.982.247-25",
	})
	state.ContractData = &models.ContractData{
		Parties: []models.ContractParty{
			{Text: "CONTRACT NAME, COMO COMPRADOR", Document: "111.111.111-11"},
		},
	}

	r.Apply(state)

	assert.Equal(t, "RG NAME", state.Buyer.Name)
	assert.Equal(t, "529.982.247-25", state.Buyer.TaxID)
}

func TestResolver_NeverOverwritesUserInput(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()
	state.Buyer.Name = "Typed By User"
	state.Buyer.City = "Campinas"

	attachAnalysis(state, models.SlotRGFront, &models.DocumentAnalysis{Name: "RG NAME"})
	attachAnalysis(state, models.SlotProofOfAddress, &models.DocumentAnalysis{
		City:       "Sao Paulo",
		PostalCode: "01000-000",
	})

	r.Apply(state)

	assert.Equal(t, "Typed By User", state.Buyer.Name)
	assert.Equal(t, "Campinas", state.Buyer.City)
	// Still-empty fields are filled.
	assert.Equal(t, "01000-000", state.Buyer.PostalCode)
}

func TestResolver_Apply_IsIdempotent(t *testing.T) {
	r := createTestResolver(t)
	state := models.NewProcessState()

	attachAnalysis(state, models.SlotRGFront, &models.DocumentAnalysis{
		Name:           "RG NAME",
		DocumentNumber: "529.982.247-25",
	})
	attachAnalysis(state, models.SlotProofOfAddress, &models.DocumentAnalysis{
		City: "Sao Paulo",
	})

	first := r.Apply(state)
	require.Positive(t, first)

	second := r.Apply(state)
	assert.Zero(t, second)
	assert.Equal(t, "RG NAME", state.Buyer.Name)
}
