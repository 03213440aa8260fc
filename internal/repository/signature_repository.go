package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/residency-logbook-api/internal/models"
)

// SignatureRepository reads the append-only sign-off ledger. Writes normally
// happen inside RecordRepository.Sign so the ledger entry and the status flip
// share one transaction; Append exists for the ledger's own consumers.
type SignatureRepository struct {
	db *sqlx.DB
}

// NewSignatureRepository constructs the repository.
func NewSignatureRepository(db *sqlx.DB) *SignatureRepository {
	return &SignatureRepository{db: db}
}

// Append inserts a ledger entry. There is no update or delete.
func (r *SignatureRepository) Append(ctx context.Context, signature *models.Signature) error {
	if signature.ID == "" {
		signature.ID = uuid.NewString()
	}
	if signature.SignedAt.IsZero() {
		signature.SignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO signatures (id, signed_by_id, entity_type, entity_id, remark, signed_at)
		VALUES (:id, :signed_by_id, :entity_type, :entity_id, :remark, :signed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, signature); err != nil {
		return fmt.Errorf("append signature: %w", err)
	}
	return nil
}

// ListFor returns the ledger entries referencing one entity, oldest first.
func (r *SignatureRepository) ListFor(ctx context.Context, entityType, entityID string) ([]models.Signature, error) {
	const query = `SELECT id, signed_by_id, entity_type, entity_id, remark, signed_at
		FROM signatures WHERE entity_type = $1 AND entity_id = $2 ORDER BY signed_at ASC`
	var signatures []models.Signature
	if err := r.db.SelectContext(ctx, &signatures, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	return signatures, nil
}
