// internal/process/store/store.go

// Package store persists wizard process-state snapshots to a key-value
// backend. Writes are best-effort: a failed save is logged and swallowed so
// the wizard keeps working on the in-memory state. Reads self-heal: absent,
// corrupted or schema-invalid snapshots come back as a fresh default state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stderrors "contract-wizard/internal/common/errors"
	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/common/metrics"
	"contract-wizard/internal/models"
)

// ErrKeyNotFound marks an absent key in the backing store.
var ErrKeyNotFound = errors.New("key not found")

// undefinedMarker is the literal some clients persist instead of nothing.
// Treated the same as a corrupted entry.
const undefinedMarker = "undefined"

// KV is the key-value contract the store needs from its backend.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

// Store snapshots ProcessState under <prefix>:<processID>.
type Store struct {
	kv     KV
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

func New(kv KV, prefix string, ttl time.Duration, log logger.Logger) *Store {
	return &Store{
		kv:     kv,
		prefix: prefix,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "state-store"}),
	}
}

func (s *Store) key(processID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, processID)
}

// Save serializes and stores the state. Never returns an error: persistence
// failures are logged and the in-memory state stays authoritative.
func (s *Store) Save(ctx context.Context, state *models.ProcessState) {
	raw, err := json.Marshal(state)
	if err != nil {
		metrics.StateSaves.WithLabelValues("error").Inc()
		s.logger.Error("failed to serialize process state", map[string]interface{}{
			"processId": state.ProcessID,
			"error":     err.Error(),
		})
		return
	}

	if err := s.kv.Set(ctx, s.key(state.ProcessID), string(raw), s.ttl); err != nil {
		metrics.StateSaves.WithLabelValues("error").Inc()
		perr := stderrors.NewStatePersistFailedError(err)
		s.logger.Warn("failed to persist process state, continuing in-memory", map[string]interface{}{
			"processId": state.ProcessID,
			"error":     perr.Error(),
		})
		return
	}

	metrics.StateSaves.WithLabelValues("ok").Inc()
}

// Load reads the snapshot for the process, or returns a fresh default state
// when nothing usable is stored. Corrupted entries are removed so the next
// save starts clean. Snapshots written by older schema versions are
// forward-migrated: absent fields get their defaults.
func (s *Store) Load(ctx context.Context, processID string) *models.ProcessState {
	raw, err := s.kv.Get(ctx, s.key(processID))
	if errors.Is(err, ErrKeyNotFound) {
		metrics.StateLoads.WithLabelValues("absent").Inc()
		return s.fresh(processID)
	}
	if err != nil {
		metrics.StateLoads.WithLabelValues("error").Inc()
		s.logger.Warn("failed to read process state, starting fresh", map[string]interface{}{
			"processId": processID,
			"error":     err.Error(),
		})
		return s.fresh(processID)
	}

	if raw == "" || raw == undefinedMarker {
		return s.reset(ctx, processID, "empty or undefined snapshot")
	}

	if err := validateSnapshot(raw); err != nil {
		return s.reset(ctx, processID, err.Error())
	}

	var state models.ProcessState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return s.reset(ctx, processID, err.Error())
	}

	migrate(&state, processID)
	metrics.StateLoads.WithLabelValues("ok").Inc()
	return &state
}

// Clear removes all persisted state for the process. Called only after a
// terminal successful submission.
func (s *Store) Clear(ctx context.Context, processID string) {
	if err := s.kv.Remove(ctx, s.key(processID)); err != nil {
		s.logger.Warn("failed to clear process state", map[string]interface{}{
			"processId": processID,
			"error":     err.Error(),
		})
	}
}

func (s *Store) fresh(processID string) *models.ProcessState {
	state := models.NewProcessState()
	if processID != "" {
		state.ProcessID = processID
	}
	return state
}

// reset drops a corrupted entry and hands back defaults. Corruption is
// self-healing, never surfaced as a blocking error.
func (s *Store) reset(ctx context.Context, processID, reason string) *models.ProcessState {
	metrics.StateLoads.WithLabelValues("corrupted").Inc()
	cerr := stderrors.NewStateCorruptedError(reason)
	s.logger.Warn("discarding corrupted process state", map[string]interface{}{
		"processId": processID,
		"reason":    reason,
		"error":     cerr.Error(),
	})
	if err := s.kv.Remove(ctx, s.key(processID)); err != nil {
		s.logger.Warn("failed to remove corrupted entry", map[string]interface{}{
			"processId": processID,
			"error":     err.Error(),
		})
	}
	return s.fresh(processID)
}

// migrate backfills fields absent from snapshots written by older schema
// versions. A snapshot with no processId is treated as unusable for the
// requested process and rebound to it.
func migrate(state *models.ProcessState, processID string) {
	if state.ProcessID == "" {
		state.ProcessID = processID
	}
	if state.CurrentStep == "" {
		state.CurrentStep = models.StepInitialData
	}
	if state.ContractSource == "" {
		state.ContractSource = models.SourceNew
	}
	if state.BuyerType == "" {
		state.BuyerType = models.BuyerPF
	}
	if state.PersonalDocKind == "" {
		state.PersonalDocKind = models.DocKindRG
	}
	if state.Documents == nil {
		state.Documents = make(map[models.SlotKey]*models.Document)
	}
	if state.BuyerType == models.BuyerPJ && state.Company == nil {
		state.Company = &models.CompanyInfo{}
	}
	if state.BuyerType == models.BuyerPF {
		state.Company = nil
	}
	state.SchemaVersion = models.SchemaVersion
}
