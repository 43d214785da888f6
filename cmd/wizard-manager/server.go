// cmd/wizard-manager/server.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"contract-wizard/internal/analysis"
	stderrors "contract-wizard/internal/common/errors"
	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/models"
	"contract-wizard/internal/process/prefill"
	"contract-wizard/internal/process/store"
	"contract-wizard/internal/process/validation"
	"contract-wizard/internal/process/wizard"
	"contract-wizard/pkg/registry"
)

// server holds one wizard controller per active process and exposes the
// wizard over a JSON HTTP surface.
type server struct {
	log       logger.Logger
	store     *store.Store
	resolver  *prefill.Resolver
	submitter wizard.Submitter
	analyzer  *analysis.Client
	templates *registry.TemplateRegistry
	autosave  time.Duration

	mu       sync.Mutex
	sessions map[string]*wizard.Controller
}

func newServer(
	log logger.Logger,
	st *store.Store,
	resolver *prefill.Resolver,
	submitter wizard.Submitter,
	analyzer *analysis.Client,
	templates *registry.TemplateRegistry,
	autosave time.Duration,
) *server {
	return &server{
		log:       log.WithFields(map[string]interface{}{"component": "http"}),
		store:     st,
		resolver:  resolver,
		submitter: submitter,
		analyzer:  analyzer,
		templates: templates,
		autosave:  autosave,
		sessions:  make(map[string]*wizard.Controller),
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/process", s.handleStart)
	mux.HandleFunc("GET /api/process/{id}", s.handleState)
	mux.HandleFunc("POST /api/process/{id}/advance", s.handleAdvance)
	mux.HandleFunc("POST /api/process/{id}/back", s.handleBack)

	mux.HandleFunc("PUT /api/process/{id}/team-member", s.handleTeamMember)
	mux.HandleFunc("PUT /api/process/{id}/buyer", s.handleBuyer)
	mux.HandleFunc("PUT /api/process/{id}/company", s.handleCompany)
	mux.HandleFunc("PUT /api/process/{id}/buyer-type", s.handleBuyerType)
	mux.HandleFunc("PUT /api/process/{id}/document-kind", s.handleDocKind)
	mux.HandleFunc("PUT /api/process/{id}/contract-source", s.handleContractSource)
	mux.HandleFunc("PUT /api/process/{id}/contract-data", s.handleContractData)

	mux.HandleFunc("POST /api/process/{id}/template", s.handleTemplate)
	mux.HandleFunc("POST /api/process/{id}/contract-photo", s.handleContractPhoto)
	mux.HandleFunc("POST /api/process/{id}/documents/{slot}", s.handleAttachDocument)
	mux.HandleFunc("DELETE /api/process/{id}/documents/{slot}", s.handleRemoveDocument)
	mux.HandleFunc("POST /api/process/{id}/signed-photo", s.handleSignedPhoto)

	mux.HandleFunc("GET /api/templates", s.handleTemplates)

	return mux
}

// session returns the controller for the process, creating one (and loading
// or starting its state) on first touch.
func (s *server) session(ctx context.Context, processID string) *wizard.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.sessions[processID]; ok {
		return c
	}

	c := wizard.NewController(ctx, processID, wizard.Options{
		Store:            s.store,
		Resolver:         s.resolver,
		Submitter:        s.submitter,
		Logger:           s.log,
		AutosaveDebounce: s.autosave,
	})
	s.sessions[c.ProcessID()] = c
	return c
}

func (s *server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.sessions {
		c.Close()
	}
}

// ==========================
// Process lifecycle
// ==========================

func (s *server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProcessID string `json:"processId"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	c := s.session(r.Context(), req.ProcessID)
	writeState(w, http.StatusCreated, c)
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	c := s.session(r.Context(), r.PathValue("id"))
	writeState(w, http.StatusOK, c)
}

func (s *server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	c := s.session(r.Context(), r.PathValue("id"))

	step, defs, err := c.Advance(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := advanceResponse{
		ProcessID:    c.ProcessID(),
		CurrentStep:  step,
		Deficiencies: defs,
	}
	if step == models.StepConfirmation {
		resp.ConfirmationID = c.ConfirmationID()
	}

	status := http.StatusOK
	if len(defs) > 0 {
		status = http.StatusUnprocessableEntity
		verr := stderrors.NewValidationIncompleteError(string(step), len(defs))
		resp.Error = verr.Message
		resp.Code = string(verr.Code)
	}
	writeJSON(w, status, resp)
}

func (s *server) handleBack(w http.ResponseWriter, r *http.Request) {
	c := s.session(r.Context(), r.PathValue("id"))
	step := c.Back(r.Context())
	writeJSON(w, http.StatusOK, advanceResponse{
		ProcessID:   c.ProcessID(),
		CurrentStep: step,
	})
}

// ==========================
// Field mutation
// ==========================

func (s *server) handleTeamMember(w http.ResponseWriter, r *http.Request) {
	var info models.TeamMemberInfo
	if !decode(w, r, &info) {
		return
	}
	c := s.session(r.Context(), r.PathValue("id"))
	c.SetTeamMember(info)
	writeState(w, http.StatusOK, c)
}

func (s *server) handleBuyer(w http.ResponseWriter, r *http.Request) {
	var info models.PersonInfo
	if !decode(w, r, &info) {
		return
	}
	c := s.session(r.Context(), r.PathValue("id"))
	c.SetBuyer(info)
	writeState(w, http.StatusOK, c)
}

func (s *server) handleCompany(w http.ResponseWriter, r *http.Request) {
	var info models.CompanyInfo
	if !decode(w, r, &info) {
		return
	}
	c := s.session(r.Context(), r.PathValue("id"))
	if err := c.SetCompany(info); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeState(w, http.StatusOK, c)
}

func (s *server) handleBuyerType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerType models.BuyerType `json:"buyerType"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.BuyerType != models.BuyerPF && req.BuyerType != models.BuyerPJ {
		writeError(w, http.StatusBadRequest, errors.New("buyerType must be pf or pj"))
		return
	}
	c := s.session(r.Context(), r.PathValue("id"))
	c.SetBuyerType(req.BuyerType)
	writeState(w, http.StatusOK, c)
}

func (s *server) handleDocKind(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PersonalDocKind models.PersonalDocKind `json:"personalDocKind"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.PersonalDocKind != models.DocKindRG && req.PersonalDocKind != models.DocKindCNH {
		writeError(w, http.StatusBadRequest, errors.New("personalDocKind must be rg or cnh"))
		return
	}
	c := s.session(r.Context(), r.PathValue("id"))
	c.SetPersonalDocKind(req.PersonalDocKind)
	writeState(w, http.StatusOK, c)
}

func (s *server) handleContractSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContractSourceType models.ContractSource `json:"contractSourceType"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ContractSourceType != models.SourceNew && req.ContractSourceType != models.SourceExisting {
		writeError(w, http.StatusBadRequest, errors.New("contractSourceType must be new or existing"))
		return
	}
	c := s.session(r.Context(), r.PathValue("id"))
	c.SetContractSource(req.ContractSourceType)
	writeState(w, http.StatusOK, c)
}

func (s *server) handleContractData(w http.ResponseWriter, r *http.Request) {
	var data models.ContractData
	if !decode(w, r, &data) {
		return
	}
	c := s.session(r.Context(), r.PathValue("id"))
	c.SetContractData(&data)
	writeState(w, http.StatusOK, c)
}

func (s *server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"templateId"`
	}
	if !decode(w, r, &req) {
		return
	}

	tpl, err := s.templates.Find(req.TemplateID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	c := s.session(r.Context(), r.PathValue("id"))
	data := tpl.Data
	if err := c.SelectTemplate(tpl.ID, &data); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeState(w, http.StatusOK, c)
}

// ==========================
// Photos and documents
// ==========================

// handleContractPhoto attaches the photographed contract and kicks off the
// clarity check and text extraction in the background. Results land on the
// controller when they arrive; a failed check leaves a not-clear verdict for
// the review gate to report.
func (s *server) handleContractPhoto(w http.ResponseWriter, r *http.Request) {
	var ref models.PhotoRef
	if !decode(w, r, &ref) {
		return
	}

	c := s.session(r.Context(), r.PathValue("id"))
	gen, err := c.AttachContractPhoto(ref)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	go s.analyzeContractPhoto(c, gen, ref)

	writeState(w, http.StatusAccepted, c)
}

func (s *server) analyzeContractPhoto(c *wizard.Controller, gen int, ref models.PhotoRef) {
	ctx := context.Background()

	verdict, err := s.analyzer.VerifyPhoto(ctx, ref.PreviewHandle)
	if err != nil {
		verr := stderrors.NewPhotoVerifyFailedError(err)
		s.log.Warn("contract photo verification failed", map[string]interface{}{
			"processId": c.ProcessID(),
			"error":     verr.Error(),
		})
		verdict = &models.PhotoVerification{IsCompleteAndClear: false, Reason: "verification unavailable"}
	}
	if !c.ApplyPhotoVerification(gen, *verdict) {
		// Photo was replaced or the source changed while we were out.
		return
	}
	if !verdict.IsCompleteAndClear {
		return
	}

	data, err := s.analyzer.ExtractContract(ctx, ref.PreviewHandle)
	if err != nil {
		xerr := stderrors.NewContractExtractionFailedError(err)
		s.log.Warn("contract extraction failed", map[string]interface{}{
			"processId": c.ProcessID(),
			"error":     xerr.Error(),
		})
		return
	}
	c.ApplyContractExtraction(gen, data)
}

// handleAttachDocument stores the document and schedules its extraction. The
// generation returned by the attach pins the result to this exact upload;
// if the slot changes before the analyzer answers, the answer is dropped.
func (s *server) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	var doc models.Document
	if !decode(w, r, &doc) {
		return
	}

	slot := models.SlotKey(r.PathValue("slot"))
	c := s.session(r.Context(), r.PathValue("id"))

	gen, err := c.AttachDocument(slot, doc)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	go s.analyzeDocument(c, slot, gen, doc)

	writeState(w, http.StatusAccepted, c)
}

func (s *server) analyzeDocument(c *wizard.Controller, slot models.SlotKey, gen int, doc models.Document) {
	analysisResult, err := s.analyzer.ExtractDocument(context.Background(), doc.PreviewHandle, slot)
	if err != nil {
		xerr := stderrors.NewDocumentExtractionFailedError(string(slot), err)
		s.log.Warn("document extraction failed", map[string]interface{}{
			"processId": c.ProcessID(),
			"slot":      string(slot),
			"error":     xerr.Error(),
		})
		analysisResult = &models.DocumentAnalysis{Error: err.Error()}
	}
	c.ApplyAnalysis(slot, gen, analysisResult)
}

func (s *server) handleRemoveDocument(w http.ResponseWriter, r *http.Request) {
	c := s.session(r.Context(), r.PathValue("id"))
	c.RemoveDocument(models.SlotKey(r.PathValue("slot")))
	writeState(w, http.StatusOK, c)
}

func (s *server) handleSignedPhoto(w http.ResponseWriter, r *http.Request) {
	var ref models.PhotoRef
	if !decode(w, r, &ref) {
		return
	}
	c := s.session(r.Context(), r.PathValue("id"))
	c.AttachSignedPhoto(ref)
	writeState(w, http.StatusOK, c)
}

func (s *server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.templates)
}

// ==========================
// Wire helpers
// ==========================

type stateResponse struct {
	ProcessID   string               `json:"processId"`
	CurrentStep models.Step          `json:"currentStep"`
	State       *models.ProcessState `json:"state"`
}

type advanceResponse struct {
	ProcessID      string                  `json:"processId"`
	CurrentStep    models.Step             `json:"currentStep"`
	Deficiencies   []validation.Deficiency `json:"deficiencies,omitempty"`
	ConfirmationID string                  `json:"confirmationId,omitempty"`
	Error          string                  `json:"error,omitempty"`
	Code           string                  `json:"code,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeState(w http.ResponseWriter, status int, c *wizard.Controller) {
	writeJSON(w, status, stateResponse{
		ProcessID:   c.ProcessID(),
		CurrentStep: c.CurrentStep(),
		State:       c.State(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Code:  string(stderrors.CodeOf(err)),
	})
}

func statusFor(err error) int {
	switch stderrors.CodeOf(err) {
	case stderrors.ErrCodeInvalidTransition:
		return http.StatusConflict
	case stderrors.ErrCodeDuplicateSubmission:
		return http.StatusConflict
	case stderrors.ErrCodeSubmissionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
