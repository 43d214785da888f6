// internal/process/wizard/controller_test.go
package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	stderrors "contract-wizard/internal/common/errors"
	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/models"
	"contract-wizard/internal/process/prefill"
	"contract-wizard/internal/process/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// memKV is an in-memory store.KV backend.
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", store.ErrKeyNotFound
	}
	return val, nil
}

func (m *memKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) snapshot(t *testing.T, processID string) *models.ProcessState {
	m.mu.Lock()
	raw, ok := m.data["wizard:process:"+processID]
	m.mu.Unlock()
	require.True(t, ok, "no snapshot stored for %s", processID)

	var state models.ProcessState
	require.NoError(t, json.Unmarshal([]byte(raw), &state))
	return &state
}

func (m *memKV) has(processID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data["wizard:process:"+processID]
	return ok
}

// fakeSubmitter records submissions and answers with a fixed result.
type fakeSubmitter struct {
	confirmationID string
	err            error
	calls          int
}

func (f *fakeSubmitter) Submit(ctx context.Context, state *models.ProcessState) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.confirmationID, nil
}

func createController(t *testing.T, kv *memKV, submitter Submitter, processID string) *Controller {
	st := store.New(kv, "wizard:process", time.Hour, logger.NewTestLogger(t))
	c := NewController(context.Background(), processID, Options{
		Store:            st,
		Resolver:         prefill.NewResolver(prefill.DefaultMarkers(), logger.NewTestLogger(t)),
		Submitter:        submitter,
		Logger:           logger.NewTestLogger(t),
		AutosaveDebounce: 10 * time.Millisecond,
	})
	t.Cleanup(c.Close)
	return c
}

// seedState stores a snapshot so the controller loads it on construction.
func seedState(t *testing.T, kv *memKV, state *models.ProcessState) {
	raw, err := json.Marshal(state)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), "wizard:process:"+state.ProcessID, string(raw), 0))
}

func completeTeamMember() models.TeamMemberInfo {
	return models.TeamMemberInfo{
		PersonInfo: models.PersonInfo{
			Name:  "Ana Lima",
			TaxID: "390.533.447-05",
			Phone: "+5511987654321",
			Email: "ana.lima@example.com",
		},
		Role: "closing-agent",
	}
}

// submittableState builds a PF state that passes every completeness check.
func submittableState(step models.Step) *models.ProcessState {
	state := models.NewProcessState()
	state.CurrentStep = step
	state.TeamMember = completeTeamMember()
	state.Buyer = models.PersonInfo{
		Name:         "Joao Pereira",
		TaxID:        "529.982.247-25",
		Phone:        "11987654321",
		Email:        "joao@example.com",
		AddressLine:  "Rua das Flores 100",
		Neighborhood: "Centro",
		City:         "Sao Paulo",
		State:        "SP",
		PostalCode:   "01000-000",
	}
	state.ContractPhoto = &models.PhotoRef{PreviewHandle: "preview/contract"}
	state.PhotoVerification = &models.PhotoVerification{IsCompleteAndClear: true}
	state.ContractData = &models.ContractData{Subject: "Compra e venda"}
	state.Documents[models.SlotRGFront] = &models.Document{FileName: "rg-front.jpg"}
	state.Documents[models.SlotRGBack] = &models.Document{FileName: "rg-back.jpg"}
	state.Documents[models.SlotProofOfAddress] = &models.Document{FileName: "conta.pdf"}
	state.SignedContractPhoto = &models.PhotoRef{PreviewHandle: "preview/signed"}
	return state
}

// ==========================
// Lifecycle Tests
// ==========================

func TestController_FreshProcess_StartsAtInitialData(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	assert.NotEmpty(t, c.ProcessID())
	assert.Equal(t, models.StepInitialData, c.CurrentStep())
}

func TestController_ResumesPersistedState(t *testing.T) {
	kv := newMemKV()
	state := models.NewProcessState()
	state.CurrentStep = models.StepDocuments
	state.Buyer.Name = "Joao Pereira"
	seedState(t, kv, state)

	c := createController(t, kv, &fakeSubmitter{}, state.ProcessID)

	assert.Equal(t, models.StepDocuments, c.CurrentStep())
	assert.Equal(t, "Joao Pereira", c.State().Buyer.Name)
}

func TestController_MutationIsAutosaved(t *testing.T) {
	kv := newMemKV()
	c := createController(t, kv, &fakeSubmitter{}, "")

	c.SetBuyer(models.PersonInfo{Name: "Joao Pereira"})

	assert.Eventually(t, func() bool {
		if !kv.has(c.ProcessID()) {
			return false
		}
		return kv.snapshot(t, c.ProcessID()).Buyer.Name == "Joao Pereira"
	}, time.Second, 5*time.Millisecond)
}

// ==========================
// Navigation Tests
// ==========================

func TestController_Advance_BlockedByDeficiencies(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	step, defs, err := c.Advance(context.Background())

	require.NoError(t, err)
	assert.Equal(t, models.StepInitialData, step)
	assert.NotEmpty(t, defs)
	assert.Equal(t, models.StepInitialData, c.CurrentStep())
}

func TestController_Advance_MovesForwardAndPersists(t *testing.T) {
	kv := newMemKV()
	c := createController(t, kv, &fakeSubmitter{}, "")

	c.SetTeamMember(completeTeamMember())
	step, defs, err := c.Advance(context.Background())

	require.NoError(t, err)
	assert.Empty(t, defs)
	assert.Equal(t, models.StepContractSource, step)

	persisted := kv.snapshot(t, c.ProcessID())
	assert.Equal(t, models.StepContractSource, persisted.CurrentStep)
	assert.Equal(t, "Ana Lima", persisted.TeamMember.Name)
}

func TestController_Back_AlwaysAllowed(t *testing.T) {
	kv := newMemKV()
	state := models.NewProcessState()
	state.CurrentStep = models.StepDocuments
	seedState(t, kv, state)

	c := createController(t, kv, &fakeSubmitter{}, state.ProcessID)

	// Documents is far from complete; back still works.
	assert.Equal(t, models.StepContractSource, c.Back(context.Background()))
	assert.Equal(t, models.StepInitialData, c.Back(context.Background()))
	// First step has no predecessor.
	assert.Equal(t, models.StepInitialData, c.Back(context.Background()))
}

func TestController_PrintStep_AdvancesWithoutChecks(t *testing.T) {
	kv := newMemKV()
	state := submittableState(models.StepPrint)
	state.SignedContractPhoto = nil
	seedState(t, kv, state)

	c := createController(t, kv, &fakeSubmitter{}, state.ProcessID)

	step, defs, err := c.Advance(context.Background())
	require.NoError(t, err)
	assert.Empty(t, defs)
	assert.Equal(t, models.StepSignedPhoto, step)
}

// ==========================
// Cascading Reset Tests
// ==========================

func TestController_SetBuyerType_ClearsOppositeSlots(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	gen, err := c.AttachDocument(models.SlotRGFront, models.Document{FileName: "rg.jpg"})
	require.NoError(t, err)

	c.SetBuyerType(models.BuyerPJ)

	state := c.State()
	assert.False(t, state.HasDocument(models.SlotRGFront))
	require.NotNil(t, state.Company)

	// The in-flight analysis for the cleared slot is now stale.
	applied := c.ApplyAnalysis(models.SlotRGFront, gen, &models.DocumentAnalysis{Name: "LATE"})
	assert.False(t, applied)
	assert.Empty(t, c.State().Buyer.Name)
}

func TestController_SetBuyerType_BackToPF_DropsCompany(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	c.SetBuyerType(models.BuyerPJ)
	_, err := c.AttachDocument(models.SlotCompanyRegistration, models.Document{FileName: "reg.pdf"})
	require.NoError(t, err)

	c.SetBuyerType(models.BuyerPF)

	state := c.State()
	assert.Nil(t, state.Company)
	assert.False(t, state.HasDocument(models.SlotCompanyRegistration))
}

func TestController_SetPersonalDocKind_ClearsOtherPair(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	_, err := c.AttachDocument(models.SlotRGFront, models.Document{FileName: "rg.jpg"})
	require.NoError(t, err)

	c.SetPersonalDocKind(models.DocKindCNH)
	assert.False(t, c.State().HasDocument(models.SlotRGFront))

	// Same kind again is a no-op.
	_, err = c.AttachDocument(models.SlotCNHFront, models.Document{FileName: "cnh.jpg"})
	require.NoError(t, err)
	c.SetPersonalDocKind(models.DocKindCNH)
	assert.True(t, c.State().HasDocument(models.SlotCNHFront))
}

func TestController_SetContractSource_ResetsContractChain(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	gen, err := c.AttachContractPhoto(models.PhotoRef{PreviewHandle: "preview/contract"})
	require.NoError(t, err)
	require.True(t, c.ApplyPhotoVerification(gen, models.PhotoVerification{IsCompleteAndClear: true}))
	require.True(t, c.ApplyContractExtraction(gen, &models.ContractData{Subject: "Compra e venda"}))

	c.SetContractSource(models.SourceExisting)

	state := c.State()
	assert.Nil(t, state.ContractPhoto)
	assert.Nil(t, state.PhotoVerification)
	assert.Nil(t, state.ContractData)
	assert.Empty(t, state.ContractTemplateID)
}

// ==========================
// Source and Slot Guard Tests
// ==========================

func TestController_SourceGuards(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	// Default source is "new": template selection refused.
	err := c.SelectTemplate("compra-venda-imovel-pf", &models.ContractData{Subject: "x"})
	assert.Error(t, err)

	c.SetContractSource(models.SourceExisting)
	_, err = c.AttachContractPhoto(models.PhotoRef{PreviewHandle: "p"})
	assert.Error(t, err)
	assert.NoError(t, c.SelectTemplate("compra-venda-imovel-pf", &models.ContractData{Subject: "x"}))

	state := c.State()
	assert.Equal(t, "compra-venda-imovel-pf", state.ContractTemplateID)
	assert.Equal(t, "x", state.ContractData.Subject)
}

func TestController_AttachDocument_IrrelevantSlotRefused(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	// PF buyer cannot receive company documents.
	_, err := c.AttachDocument(models.SlotCompanyRegistration, models.Document{FileName: "reg.pdf"})
	assert.Error(t, err)

	c.SetBuyerType(models.BuyerPJ)
	_, err = c.AttachDocument(models.SlotRGFront, models.Document{FileName: "rg.jpg"})
	assert.Error(t, err)
}

func TestController_SetCompany_RequiresPJ(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	assert.Error(t, c.SetCompany(models.CompanyInfo{LegalName: "Acme"}))

	c.SetBuyerType(models.BuyerPJ)
	require.NoError(t, c.SetCompany(models.CompanyInfo{LegalName: "Acme"}))
	assert.Equal(t, "Acme", c.State().Company.LegalName)
}

// ==========================
// Analysis Result Tests
// ==========================

func TestController_ApplyAnalysis_RunsPrefill(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	gen, err := c.AttachDocument(models.SlotRGFront, models.Document{FileName: "rg.jpg"})
	require.NoError(t, err)

	applied := c.ApplyAnalysis(models.SlotRGFront, gen, &models.DocumentAnalysis{
		Name:           "RG NAME",
		DocumentNumber: "529.982.247-25",
	})

	assert.True(t, applied)
	state := c.State()
	assert.Equal(t, "RG NAME", state.Buyer.Name)
	assert.Equal(t, "529.982.247-25", state.Buyer.TaxID)
}

func TestController_ApplyAnalysis_StaleAfterReattach(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	gen1, err := c.AttachDocument(models.SlotRGFront, models.Document{FileName: "first.jpg"})
	require.NoError(t, err)
	gen2, err := c.AttachDocument(models.SlotRGFront, models.Document{FileName: "second.jpg"})
	require.NoError(t, err)
	require.NotEqual(t, gen1, gen2)

	// The late answer for the replaced upload is dropped.
	assert.False(t, c.ApplyAnalysis(models.SlotRGFront, gen1, &models.DocumentAnalysis{Name: "OLD"}))
	assert.True(t, c.ApplyAnalysis(models.SlotRGFront, gen2, &models.DocumentAnalysis{Name: "NEW"}))
	assert.Equal(t, "NEW", c.State().Buyer.Name)
}

func TestController_ApplyAnalysis_RemovedSlotDiscards(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	gen, err := c.AttachDocument(models.SlotRGFront, models.Document{FileName: "rg.jpg"})
	require.NoError(t, err)
	c.RemoveDocument(models.SlotRGFront)

	assert.False(t, c.ApplyAnalysis(models.SlotRGFront, gen, &models.DocumentAnalysis{Name: "LATE"}))
}

func TestController_ApplyPhotoVerification_StaleAfterReattach(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	gen1, err := c.AttachContractPhoto(models.PhotoRef{PreviewHandle: "first.jpg"})
	require.NoError(t, err)
	gen2, err := c.AttachContractPhoto(models.PhotoRef{PreviewHandle: "second.jpg"})
	require.NoError(t, err)
	require.NotEqual(t, gen1, gen2)

	// The late verdict for the replaced photo must not land on the new one.
	assert.False(t, c.ApplyPhotoVerification(gen1, models.PhotoVerification{
		IsCompleteAndClear: false,
		Reason:             "blurry",
	}))
	assert.Nil(t, c.State().PhotoVerification)

	assert.True(t, c.ApplyPhotoVerification(gen2, models.PhotoVerification{IsCompleteAndClear: true}))
	assert.True(t, c.State().PhotoVerification.IsCompleteAndClear)
}

func TestController_ApplyContractExtraction_StaleAfterSourceSwitch(t *testing.T) {
	c := createController(t, newMemKV(), &fakeSubmitter{}, "")

	gen, err := c.AttachContractPhoto(models.PhotoRef{PreviewHandle: "contract.jpg"})
	require.NoError(t, err)
	c.SetContractSource(models.SourceExisting)

	assert.False(t, c.ApplyContractExtraction(gen, &models.ContractData{Subject: "late"}))
	assert.False(t, c.ApplyPhotoVerification(gen, models.PhotoVerification{IsCompleteAndClear: true}))

	state := c.State()
	assert.Nil(t, state.ContractData)
	assert.Nil(t, state.PhotoVerification)
}

// ==========================
// Submission Tests
// ==========================

func TestController_Submit_Success_ClearsStateAndLandsOnConfirmation(t *testing.T) {
	kv := newMemKV()
	state := submittableState(models.StepSignedPhoto)
	seedState(t, kv, state)

	submitter := &fakeSubmitter{confirmationID: "conf-123"}
	c := createController(t, kv, submitter, state.ProcessID)

	step, defs, err := c.Advance(context.Background())

	require.NoError(t, err)
	assert.Empty(t, defs)
	assert.Equal(t, models.StepConfirmation, step)
	assert.Equal(t, "conf-123", c.ConfirmationID())
	assert.Equal(t, 1, submitter.calls)
	assert.False(t, kv.has(state.ProcessID), "persisted state must be cleared after submission")
}

func TestController_Submit_Failure_KeepsStateForRetry(t *testing.T) {
	kv := newMemKV()
	state := submittableState(models.StepSignedPhoto)
	seedState(t, kv, state)

	submitter := &fakeSubmitter{err: errors.New("connection reset")}
	c := createController(t, kv, submitter, state.ProcessID)

	step, _, err := c.Advance(context.Background())

	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeSubmissionFailed, stderrors.CodeOf(err))
	assert.Equal(t, models.StepSignedPhoto, step)
	assert.Equal(t, models.StepSignedPhoto, c.CurrentStep())
	assert.True(t, kv.has(state.ProcessID), "state must survive a failed submission")

	// An explicit retry succeeds once the collaborator recovers.
	submitter.err = nil
	submitter.confirmationID = "conf-retry"
	step, _, err = c.Advance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.StepConfirmation, step)
	assert.Equal(t, "conf-retry", c.ConfirmationID())
	assert.Equal(t, 2, submitter.calls)
}

func TestController_Submit_CodedErrorIsNotRewrapped(t *testing.T) {
	kv := newMemKV()
	state := submittableState(models.StepSignedPhoto)
	seedState(t, kv, state)

	submitter := &fakeSubmitter{err: stderrors.NewDuplicateSubmissionError(state.ProcessID)}
	c := createController(t, kv, submitter, state.ProcessID)

	_, _, err := c.Advance(context.Background())
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeDuplicateSubmission, stderrors.CodeOf(err))
}

func TestController_Advance_FromConfirmation_Refused(t *testing.T) {
	kv := newMemKV()
	state := models.NewProcessState()
	state.CurrentStep = models.StepConfirmation
	seedState(t, kv, state)

	c := createController(t, kv, &fakeSubmitter{}, state.ProcessID)

	_, _, err := c.Advance(context.Background())
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeInvalidTransition, stderrors.CodeOf(err))
}
