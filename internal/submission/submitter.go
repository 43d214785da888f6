// internal/submission/submitter.go

// Package submission records a finished contract packet permanently. The
// wizard treats a submission as a single call that either yields a
// confirmation identifier or fails; on failure the process state is kept
// for an explicit retry.
package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stderrors "contract-wizard/internal/common/errors"
	"contract-wizard/internal/common/logger"
	"contract-wizard/internal/models"

	"github.com/google/uuid"
)

var (
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrDuplicateSubmission  = errors.New("DUPLICATE_SUBMISSION")
)

// PostgresSubmitter writes packets into the contract_packets table with an
// audit trail, mirrors them into the back-office index and fires the
// confirmation notification. Index and notification are best-effort; the
// database record is the source of truth.
type PostgresSubmitter struct {
	db       *sql.DB
	indexer  *Indexer
	notifier Notifier
	logger   logger.Logger
}

// Notifier delivers the confirmation message after a successful
// submission.
type Notifier interface {
	NotifySubmitted(ctx context.Context, state *models.ProcessState, confirmationID string)
}

func NewPostgresSubmitter(db *sql.DB, indexer *Indexer, notifier Notifier, log logger.Logger) *PostgresSubmitter {
	return &PostgresSubmitter{
		db:       db,
		indexer:  indexer,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "submission"}),
	}
}

// Submit records the packet and returns the generated confirmation id.
func (s *PostgresSubmitter) Submit(ctx context.Context, state *models.ProcessState) (string, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM contract_packets
			WHERE process_id = $1
		)`, state.ProcessID).Scan(&exists)
	if err != nil {
		return "", stderrors.NewSubmissionFailedError(
			fmt.Errorf("%w: duplicate check failed: %v", ErrDatabaseInsertFailed, err))
	}
	if exists {
		return "", stderrors.NewDuplicateSubmissionError(state.ProcessID)
	}

	confirmationID := uuid.New().String()
	createdAt := time.Now().UTC().Format(time.RFC3339)

	payloadJSON, err := json.Marshal(state)
	if err != nil {
		return "", stderrors.NewSubmissionFailedError(
			fmt.Errorf("%w: failed to marshal packet payload: %v", ErrDatabaseInsertFailed, err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contract_packets (
			id, process_id, buyer_type, contract_source, payload, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		confirmationID,
		state.ProcessID,
		string(state.BuyerType),
		string(state.ContractSource),
		payloadJSON,
		"submitted",
		createdAt,
	)
	if err != nil {
		return "", stderrors.NewSubmissionFailedError(
			fmt.Errorf("%w: insert failed: %v", ErrDatabaseInsertFailed, err))
	}

	// Audit trail is non-critical: log and continue.
	auditDetailsJSON, err := json.Marshal(map[string]interface{}{
		"processId":  state.ProcessID,
		"buyerType":  state.BuyerType,
		"buyerName":  state.Buyer.Name,
		"teamMember": state.TeamMember.Name,
	})
	if err != nil {
		auditDetailsJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"packet_submitted",
		"contract_packet",
		confirmationID,
		auditDetailsJSON,
		createdAt,
	)
	if err != nil {
		s.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":          err,
			"confirmationId": confirmationID,
		})
	}

	if s.indexer != nil {
		s.indexer.Index(ctx, state, confirmationID)
	}
	if s.notifier != nil {
		s.notifier.NotifySubmitted(ctx, state, confirmationID)
	}

	s.logger.Info("contract packet recorded", map[string]interface{}{
		"confirmationId": confirmationID,
		"processId":      state.ProcessID,
	})
	return confirmationID, nil
}
