package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/snak3gh0st/emendas-etl/internal/domain"
)

// LineageRecorder appends one LineageRecord per base-entity upsert, inside
// the run's transaction, per §4.9.
type LineageRecorder struct {
	tx              *sql.Tx
	pipelineVersion string
	runID           uuid.UUID
}

// NewLineageRecorder wraps the run's transaction. pipelineVersion is the
// configured lineage.pipeline_version, written onto every record.
func NewLineageRecorder(tx *sql.Tx, pipelineVersion string, runID uuid.UUID) *LineageRecorder {
	return &LineageRecorder{tx: tx, pipelineVersion: pipelineVersion, runID: runID}
}

// Record writes one append-only LineageRecord for a single entity row.
// attrs is the canonical attribute set whose key-sorted JSON encoding
// produces record_hash; callers pass a map so key order is deterministic
// regardless of struct field order.
func (r *LineageRecorder) Record(
	ctx context.Context,
	entityType domain.EntityType,
	naturalKey string,
	sourceFile string,
	extractedAt time.Time,
	attrs map[string]any,
) error {
	hash, err := canonicalHash(attrs)
	if err != nil {
		return fmt.Errorf("hash lineage record for %s %q: %w", entityType, naturalKey, err)
	}

	const query = `
		INSERT INTO data_lineage (
			entity_type, entity_natural_key, source_file, extraction_timestamp,
			pipeline_version, record_hash, run_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := r.tx.ExecContext(ctx, query,
		string(entityType), naturalKey, sourceFile, extractedAt, r.pipelineVersion, hash, r.runID,
	); err != nil {
		return fmt.Errorf("insert lineage record for %s %q: %w", entityType, naturalKey, err)
	}

	return nil
}

// CountForSourceFile returns the number of distinct entity_natural_key
// lineage rows written in this run for the given source file, used by the
// Reconciler's loaded_count (§4.10).
func (r *LineageRecorder) CountForSourceFile(ctx context.Context, sourceFile string) (int64, error) {
	const query = `
		SELECT count(DISTINCT entity_natural_key)
		FROM data_lineage
		WHERE source_file = $1 AND run_id = $2`

	var count int64

	if err := r.tx.QueryRowContext(ctx, query, sourceFile, r.runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count lineage rows for %q: %w", sourceFile, err)
	}

	return count, nil
}

// canonicalHash encodes attrs as key-sorted JSON and returns the hex SHA-256
// digest. encoding/json already sorts map[string]any keys on marshal.
func canonicalHash(attrs map[string]any) (string, error) {
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(encoded)

	return hex.EncodeToString(sum[:]), nil
}
