package database

import (
	"fmt"

	"github.com/google/uuid"
)

var _ PendingOperationRepository = (*PendingOperationRepositoryImpl)(nil)

// PendingOperationRepositoryImpl handles database operations for the pending
// operation queue: structural mutations awaiting replay against the remote
// store.
type PendingOperationRepositoryImpl struct {
	db *DB
}

func NewPendingOperationRepository(db *DB) *PendingOperationRepositoryImpl {
	return &PendingOperationRepositoryImpl{db: db}
}

// Enqueue durably persists an operation. It never touches the network.
func (r *PendingOperationRepositoryImpl) Enqueue(opType string, payload []byte) error {
	_, err := r.db.Exec(`
		INSERT INTO pending_operations (id, op_type, payload)
		VALUES (?, ?, ?)
	`, uuid.NewString(), opType, string(payload))

	if err != nil {
		return fmt.Errorf("failed to enqueue pending operation: %w", err)
	}

	return nil
}

// ClaimBatch atomically marks up to limit unclaimed operations as processing
// and returns them in FIFO order. Claimed rows are excluded from subsequent
// claims until released.
func (r *PendingOperationRepositoryImpl) ClaimBatch(limit int) ([]PendingOperation, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, op_type, payload, processing, created_at
		FROM pending_operations
		WHERE processing = 0
		ORDER BY created_at, rowid
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select operation batch: %w", err)
	}

	var operations []PendingOperation
	for rows.Next() {
		var op PendingOperation
		var payload string
		if err := rows.Scan(&op.ID, &op.Type, &payload, &op.Processing, &op.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		op.Payload = []byte(payload)
		operations = append(operations, op)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating operation rows: %w", err)
	}
	rows.Close()

	for i := range operations {
		if _, err := tx.Exec(`
			UPDATE pending_operations SET processing = 1 WHERE id = ?
		`, operations[i].ID); err != nil {
			return nil, fmt.Errorf("failed to claim operation: %w", err)
		}
		operations[i].Processing = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit operation claim: %w", err)
	}

	return operations, nil
}

// Release finishes a claim: succeeded deletes the rows, retry clears the
// processing marker so a later drain pass can reclaim them.
func (r *PendingOperationRepositoryImpl) Release(ids []string, succeeded bool) error {
	if len(ids) == 0 {
		return nil
	}

	var query string
	if succeeded {
		query = fmt.Sprintf(`DELETE FROM pending_operations WHERE id IN (%s)`, placeholders(len(ids)))
	} else {
		query = fmt.Sprintf(`UPDATE pending_operations SET processing = 0 WHERE id IN (%s)`, placeholders(len(ids)))
	}

	if _, err := r.db.Exec(query, toArgs(ids)...); err != nil {
		return fmt.Errorf("failed to release operations: %w", err)
	}

	return nil
}

func (r *PendingOperationRepositoryImpl) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM pending_operations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending operations: %w", err)
	}
	return count, nil
}
