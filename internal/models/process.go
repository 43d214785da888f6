// internal/models/process.go
package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// SchemaVersion is the current persisted-snapshot schema version. Snapshots
// written by older builds carry a lower version and are forward-migrated on
// read.
const SchemaVersion = 2

// Step identifies one screen of the contract wizard. Confirmation is
// terminal.
type Step string

const (
	StepInitialData    Step = "initial-data"
	StepContractSource Step = "contract-source"
	StepDocuments      Step = "documents"
	StepReview         Step = "review"
	StepPrint          Step = "print"
	StepSignedPhoto    Step = "signed-photo"
	StepConfirmation   Step = "confirmation"
)

// StepSequence is the forward order of wizard steps.
var StepSequence = []Step{
	StepInitialData,
	StepContractSource,
	StepDocuments,
	StepReview,
	StepPrint,
	StepSignedPhoto,
	StepConfirmation,
}

// ContractSource says where the contract text comes from.
type ContractSource string

const (
	SourceNew      ContractSource = "new"      // photographed document
	SourceExisting ContractSource = "existing" // pre-defined template
)

// BuyerType distinguishes an individual buyer from a company buyer.
type BuyerType string

const (
	BuyerPF BuyerType = "pf" // pessoa fisica (individual)
	BuyerPJ BuyerType = "pj" // pessoa juridica (company)
)

// PersonalDocKind selects which personal-document slot pair is active for a
// PF buyer. Exactly one kind's slots are populated at a time.
type PersonalDocKind string

const (
	DocKindRG  PersonalDocKind = "rg"  // old-style national ID
	DocKindCNH PersonalDocKind = "cnh" // driver's license
)

// ProcessState is the canonical shape of everything collected across the
// wizard for one contract submission. Single source of truth; persisted
// after every mutation.
type ProcessState struct {
	SchemaVersion int    `json:"schemaVersion"`
	ProcessID     string `json:"processId"`
	CurrentStep   Step   `json:"currentStep"`

	ContractSource  ContractSource  `json:"contractSourceType"`
	BuyerType       BuyerType       `json:"buyerType"`
	PersonalDocKind PersonalDocKind `json:"personalDocKind"`

	Buyer      PersonInfo     `json:"buyerInfo"`
	Company    *CompanyInfo   `json:"companyInfo,omitempty"`
	TeamMember TeamMemberInfo `json:"internalTeamMemberInfo"`

	ContractTemplateID  string                `json:"contractTemplateId,omitempty"`
	ContractPhoto       *PhotoRef             `json:"contractPhoto,omitempty"`
	PhotoVerification   *PhotoVerification    `json:"photoVerification,omitempty"`
	ContractData        *ContractData         `json:"extractedContractData,omitempty"`
	Documents           map[SlotKey]*Document `json:"documentSlots"`
	SignedContractPhoto *PhotoRef             `json:"signedContractPhoto,omitempty"`
}

// NewProcessState returns the all-empty initial state for a fresh process.
func NewProcessState() *ProcessState {
	return &ProcessState{
		SchemaVersion:   SchemaVersion,
		ProcessID:       uuid.New().String(),
		CurrentStep:     StepInitialData,
		ContractSource:  SourceNew,
		BuyerType:       BuyerPF,
		PersonalDocKind: DocKindRG,
		Documents:       make(map[SlotKey]*Document),
	}
}

// Clone returns a deep copy of the state via its serialized form. The
// serialization is lossless, so the copy is semantically identical.
func (s *ProcessState) Clone() *ProcessState {
	raw, err := json.Marshal(s)
	if err != nil {
		return NewProcessState()
	}
	var out ProcessState
	if err := json.Unmarshal(raw, &out); err != nil {
		return NewProcessState()
	}
	if out.Documents == nil {
		out.Documents = make(map[SlotKey]*Document)
	}
	return &out
}

// Document returns the document in the given slot, or nil.
func (s *ProcessState) Document(key SlotKey) *Document {
	if s.Documents == nil {
		return nil
	}
	return s.Documents[key]
}

// HasDocument reports whether the slot holds an attached document.
func (s *ProcessState) HasDocument(key SlotKey) bool {
	return s.Document(key) != nil
}

// ActivePersonalSlots returns the slot pair for the currently selected
// personal-document kind.
func (s *ProcessState) ActivePersonalSlots() (front, back SlotKey) {
	if s.PersonalDocKind == DocKindCNH {
		return SlotCNHFront, SlotCNHBack
	}
	return SlotRGFront, SlotRGBack
}
