// internal/process/wizard/controller.go

// Package wizard sequences the contract-assembly steps. The controller owns
// the in-memory ProcessState, gates forward navigation on the completeness
// checker, runs the pre-fill resolver whenever new extracted data arrives,
// and snapshots state through the store after every mutation.
package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	stderrors "contract-wizard/internal/common/errors"
	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/common/metrics"
	"contract-wizard/internal/models"
	"contract-wizard/internal/process/prefill"
	"contract-wizard/internal/process/store"
	"contract-wizard/internal/process/validation"
)

// Submitter is the external collaborator that permanently records the
// finished packet and hands back a confirmation identifier.
type Submitter interface {
	Submit(ctx context.Context, state *models.ProcessState) (string, error)
}

// Controller is the wizard state machine for one process. The internal lock
// serializes user mutations against the debounced autosave and against
// analysis results landing from their own goroutines.
type Controller struct {
	mu        sync.Mutex
	state     *models.ProcessState
	store     *store.Store
	resolver  *prefill.Resolver
	submitter Submitter
	logger    logger.Logger

	saver    *Debouncer
	slotGen  map[models.SlotKey]int
	photoGen int

	confirmationID string
}

// Options bundle the controller's collaborators.
type Options struct {
	Store            *store.Store
	Resolver         *prefill.Resolver
	Submitter        Submitter
	Logger           logger.Logger
	AutosaveDebounce time.Duration
}

// NewController loads (or starts) the process with the given id. An empty
// processID starts a brand-new process.
func NewController(ctx context.Context, processID string, opts Options) *Controller {
	state := opts.Store.Load(ctx, processID)

	c := &Controller{
		state:     state,
		store:     opts.Store,
		resolver:  opts.Resolver,
		submitter: opts.Submitter,
		logger: opts.Logger.WithFields(map[string]interface{}{
			"component": "wizard",
			"processId": state.ProcessID,
		}),
		slotGen: make(map[models.SlotKey]int),
	}
	c.saver = NewDebouncer(opts.AutosaveDebounce, c.backgroundSave)
	return c
}

// backgroundSave is the debounced autosave target.
func (c *Controller) backgroundSave() {
	c.mu.Lock()
	snapshot := c.state.Clone()
	c.mu.Unlock()
	c.store.Save(context.Background(), snapshot)
}

// State returns a copy of the current process state.
func (c *Controller) State() *models.ProcessState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

func (c *Controller) ProcessID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ProcessID
}

func (c *Controller) CurrentStep() models.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentStep
}

// ConfirmationID is set after a successful terminal submission.
func (c *Controller) ConfirmationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmationID
}

// SlotGeneration returns the generation an analysis result must carry to be
// applied to the slot. Attaching, removing or cascading over a slot bumps
// its generation, which is how late results for cleared slots get dropped.
func (c *Controller) SlotGeneration(slot models.SlotKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slotGen[slot]
}

// PhotoGeneration is the contract-photo counterpart of SlotGeneration.
// Re-attaching the photo or switching the contract source bumps it.
func (c *Controller) PhotoGeneration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.photoGen
}

// Close flushes nothing and drops pending autosave work; used on teardown.
func (c *Controller) Close() {
	c.saver.Stop()
}

// ==========================
// Field mutators
// ==========================

func (c *Controller) SetTeamMember(info models.TeamMemberInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.TeamMember = info
	c.saver.Trigger()
}

func (c *Controller) SetBuyer(info models.PersonInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Buyer = info
	c.saver.Trigger()
}

// SetCompany updates company data; only meaningful for PJ buyers.
func (c *Controller) SetCompany(info models.CompanyInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.BuyerType != models.BuyerPJ {
		return fmt.Errorf("company data only applies to pj buyers")
	}
	c.state.Company = &info
	c.saver.Trigger()
	return nil
}

// SetBuyerType switches between individual and company buyer. Slots that
// only exist for the previous type are cleared (cascading reset) and their
// generations bumped so in-flight analysis results for them are dropped.
func (c *Controller) SetBuyerType(bt models.BuyerType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.BuyerType == bt {
		return
	}
	c.state.BuyerType = bt

	if bt == models.BuyerPJ {
		c.state.Company = &models.CompanyInfo{}
		c.clearSlots(models.PFOnlySlots)
	} else {
		c.state.Company = nil
		c.clearSlots(models.PJOnlySlots)
	}

	c.resolver.Apply(c.state)
	c.saver.Trigger()
}

// SetPersonalDocKind selects the personal-document subtype for PF buyers.
// Switching clears the other subtype's slots.
func (c *Controller) SetPersonalDocKind(kind models.PersonalDocKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.PersonalDocKind == kind {
		return
	}
	c.state.PersonalDocKind = kind

	if kind == models.DocKindCNH {
		c.clearSlots([]models.SlotKey{models.SlotRGFront, models.SlotRGBack})
	} else {
		c.clearSlots([]models.SlotKey{models.SlotCNHFront, models.SlotCNHBack})
	}
	c.saver.Trigger()
}

// SetContractSource switches where the contract text comes from. The photo,
// its verification, the extracted data and any template selection all
// depend on the source, so they are reset and the photo generation is
// bumped so in-flight verification or extraction results get dropped.
func (c *Controller) SetContractSource(src models.ContractSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ContractSource == src {
		return
	}
	c.state.ContractSource = src
	c.state.ContractPhoto = nil
	c.state.PhotoVerification = nil
	c.state.ContractData = nil
	c.state.ContractTemplateID = ""
	c.photoGen++
	c.saver.Trigger()
}

// SelectTemplate picks a pre-defined contract and copies its data in.
func (c *Controller) SelectTemplate(templateID string, data *models.ContractData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ContractSource != models.SourceExisting {
		return fmt.Errorf("template selection requires the existing contract source")
	}
	c.state.ContractTemplateID = templateID
	c.state.ContractData = data
	c.resolver.Apply(c.state)
	c.saver.Trigger()
	return nil
}

// AttachContractPhoto attaches a new contract photo and returns the
// generation an asynchronous verification or extraction result for it must
// present. Results belonging to the previous photo are reset.
func (c *Controller) AttachContractPhoto(ref models.PhotoRef) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ContractSource != models.SourceNew {
		return 0, fmt.Errorf("contract photo requires the new contract source")
	}
	c.state.ContractPhoto = &ref
	c.state.PhotoVerification = nil
	c.state.ContractData = nil
	c.photoGen++
	c.saver.Trigger()
	return c.photoGen, nil
}

// ApplyPhotoVerification records the clarity-check result. A result carrying
// a stale generation belongs to a photo that was replaced or to a source
// that was switched meanwhile; it is silently discarded.
func (c *Controller) ApplyPhotoVerification(generation int, v models.PhotoVerification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ContractPhoto == nil || generation != c.photoGen {
		metrics.StaleResultsDiscarded.Inc()
		c.logger.Debug("discarding stale photo verification", map[string]interface{}{
			"generation": generation,
		})
		return false
	}
	c.state.PhotoVerification = &v
	c.saver.Trigger()
	return true
}

// ApplyContractExtraction records the contract-extraction result and runs
// pre-fill, under the same staleness guard as ApplyPhotoVerification.
func (c *Controller) ApplyContractExtraction(generation int, data *models.ContractData) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.ContractPhoto == nil || generation != c.photoGen {
		metrics.StaleResultsDiscarded.Inc()
		c.logger.Debug("discarding stale contract extraction", map[string]interface{}{
			"generation": generation,
		})
		return false
	}
	c.state.ContractData = data
	c.resolver.Apply(c.state)
	c.saver.Trigger()
	return true
}

// SetContractData records contract data typed in by the user and runs
// pre-fill. Extraction results go through ApplyContractExtraction instead.
func (c *Controller) SetContractData(data *models.ContractData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ContractData = data
	c.resolver.Apply(c.state)
	c.saver.Trigger()
}

// AttachDocument stores a document in its slot and returns the generation
// an asynchronous analysis result for it must present.
func (c *Controller) AttachDocument(slot models.SlotKey, doc models.Document) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.slotRelevant(slot) {
		return 0, fmt.Errorf("slot %s is not relevant for the current buyer type", slot)
	}
	doc.Analysis = nil
	c.state.Documents[slot] = &doc
	c.slotGen[slot]++
	c.saver.Trigger()
	return c.slotGen[slot], nil
}

// RemoveDocument clears a slot. Any in-flight analysis for it becomes
// stale.
func (c *Controller) RemoveDocument(slot models.SlotKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.Documents[slot]; !ok {
		return
	}
	delete(c.state.Documents, slot)
	c.slotGen[slot]++
	c.saver.Trigger()
}

// ApplyAnalysis attaches an extraction result to its document and runs the
// pre-fill resolver. A result carrying a stale generation belongs to a slot
// that was cleared or replaced meanwhile; it is silently discarded.
func (c *Controller) ApplyAnalysis(slot models.SlotKey, generation int, analysis *models.DocumentAnalysis) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc := c.state.Document(slot)
	if doc == nil || generation != c.slotGen[slot] {
		metrics.StaleResultsDiscarded.Inc()
		c.logger.Debug("discarding stale analysis result", map[string]interface{}{
			"slot":       string(slot),
			"generation": generation,
		})
		return false
	}

	doc.Analysis = analysis
	c.resolver.Apply(c.state)
	c.saver.Trigger()
	return true
}

// AttachSignedPhoto records the photo of the printed and signed contract.
func (c *Controller) AttachSignedPhoto(ref models.PhotoRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SignedContractPhoto = &ref
	c.saver.Trigger()
}

// ==========================
// Navigation
// ==========================

// Advance moves one step forward. When the current step's checks fail, the
// transition is refused and the deficiencies are returned. Entering the
// print step requires a fully submission-ready state. Advancing out of the
// signed-photo step submits the packet: on success the persisted state is
// cleared and the wizard lands on the terminal confirmation step, on
// failure everything is kept for an explicit retry.
func (c *Controller) Advance(ctx context.Context) (models.Step, []validation.Deficiency, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.state.CurrentStep
	next, ok := successor(current)
	if !ok {
		return current, nil, stderrors.NewInvalidTransitionError(string(current), "")
	}

	defs := validation.ForStep(c.state, current)
	if len(defs) > 0 {
		metrics.WizardTransitionsBlocked.WithLabelValues(string(current)).Inc()
		return current, defs, nil
	}

	// Pending autosaves must land before the navigation save.
	c.flush(ctx)

	if next == models.StepConfirmation {
		return c.submit(ctx, current)
	}

	c.state.CurrentStep = next
	c.store.Save(ctx, c.state.Clone())
	metrics.WizardTransitions.WithLabelValues(string(current), string(next)).Inc()
	return next, nil, nil
}

// Back moves one step backwards without validation, persisting the current
// in-memory state first.
func (c *Controller) Back(ctx context.Context) models.Step {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.state.CurrentStep
	prev, ok := predecessor(current)
	if !ok {
		return current
	}

	c.flush(ctx)
	c.state.CurrentStep = prev
	c.store.Save(ctx, c.state.Clone())
	metrics.WizardTransitions.WithLabelValues(string(current), string(prev)).Inc()
	return prev
}

func (c *Controller) submit(ctx context.Context, current models.Step) (models.Step, []validation.Deficiency, error) {
	confirmationID, err := c.submitter.Submit(ctx, c.state.Clone())
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		c.logger.Error("packet submission failed, state preserved for retry", map[string]interface{}{
			"error": err.Error(),
		})
		if stderrors.CodeOf(err) == "" {
			err = stderrors.NewSubmissionFailedError(err)
		}
		return current, nil, err
	}

	c.confirmationID = confirmationID
	c.state.CurrentStep = models.StepConfirmation
	c.store.Clear(ctx, c.state.ProcessID)
	metrics.Submissions.WithLabelValues("ok").Inc()
	metrics.WizardTransitions.WithLabelValues(string(current), string(models.StepConfirmation)).Inc()

	c.logger.Info("packet submitted", map[string]interface{}{
		"confirmationId": confirmationID,
	})
	return models.StepConfirmation, nil, nil
}

// flush runs any pending debounced save synchronously so writes stay
// ordered: debounced content lands before the navigation save.
func (c *Controller) flush(ctx context.Context) {
	if c.saver.Cancel() {
		c.store.Save(ctx, c.state.Clone())
	}
}

func (c *Controller) clearSlots(slots []models.SlotKey) {
	for _, slot := range slots {
		if _, ok := c.state.Documents[slot]; ok {
			delete(c.state.Documents, slot)
		}
		c.slotGen[slot]++
	}
}

func (c *Controller) slotRelevant(slot models.SlotKey) bool {
	switch slot {
	case models.SlotRGFront, models.SlotRGBack, models.SlotCNHFront, models.SlotCNHBack:
		return c.state.BuyerType == models.BuyerPF
	case models.SlotCompanyRegistration, models.SlotRepIDFront, models.SlotRepIDBack:
		return c.state.BuyerType == models.BuyerPJ
	case models.SlotProofOfAddress:
		return true
	default:
		return false
	}
}

// ==========================
// Transition table
// ==========================

func successor(step models.Step) (models.Step, bool) {
	for i, s := range models.StepSequence {
		if s == step && i+1 < len(models.StepSequence) {
			return models.StepSequence[i+1], true
		}
	}
	return step, false
}

func predecessor(step models.Step) (models.Step, bool) {
	for i, s := range models.StepSequence {
		if s == step && i > 0 {
			return models.StepSequence[i-1], true
		}
	}
	return step, false
}
