package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/residency-logbook-api/internal/models"
)

// ErrUniqueViolation marks inserts rejected by a uniqueness constraint, the
// backstop for the sequence-number race. Callers surface it as a retryable
// conflict.
var ErrUniqueViolation = errors.New("unique constraint violation")

// RecordRepository persists logbook entries and their lifecycle state.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs the repository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

const recordColumns = `id, owner_id, category, sub_category, sequence_no, tally, status, reviewer_remark, payload, created_at, updated_at`

// Create inserts a new record, computing its sequence number and tally inside
// one transaction so concurrent creates in the same partition cannot collide.
// When tallyPartitioned is set the sequence partition includes sub_category.
func (r *RecordRepository) Create(ctx context.Context, record *models.Record, tallyPartitioned bool) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Status = models.RecordStatusDraft

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create record: %w", err)
	}

	seqQuery := `SELECT COALESCE(MAX(sequence_no), 0) + 1 FROM records WHERE owner_id = $1 AND category = $2`
	seqArgs := []interface{}{record.OwnerID, record.Category}
	if tallyPartitioned {
		seqQuery += ` AND sub_category = $3`
		seqArgs = append(seqArgs, record.SubCategory)
	}
	if err := tx.GetContext(ctx, &record.SequenceNo, seqQuery, seqArgs...); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("next sequence: %w", err)
	}

	const tallyQuery = `SELECT COUNT(*) + 1 FROM records WHERE owner_id = $1 AND category = $2 AND sub_category = $3`
	if err := tx.GetContext(ctx, &record.Tally, tallyQuery, record.OwnerID, record.Category, record.SubCategory); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("next tally: %w", err)
	}

	const insert = `INSERT INTO records
	(id, owner_id, category, sub_category, sequence_no, tally, status, reviewer_remark, payload, created_at, updated_at)
	VALUES (:id, :owner_id, :category, :sub_category, :sequence_no, :tally, :status, :reviewer_remark, :payload, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, record); err != nil {
		tx.Rollback() //nolint:errcheck
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("insert record: %w", ErrUniqueViolation)
		}
		return fmt.Errorf("insert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create record: %w", err)
	}
	return nil
}

// GetByID fetches a record by identifier.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = $1`
	var record models.Record
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns records matching the filter, newest first. A scoped filter
// with no visible owners short-circuits to an empty result.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.Record, error) {
	if filter.Scoped && filter.OwnerID == "" && len(filter.OwnerIDs) == 0 {
		return []models.Record{}, nil
	}

	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + recordColumns + ` FROM records`)
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 5)

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	} else if len(filter.OwnerIDs) > 0 {
		args = append(args, pq.Array(filter.OwnerIDs))
		conditions = append(conditions, fmt.Sprintf("owner_id = ANY($%d)", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.SubCategory != "" {
		args = append(args, filter.SubCategory)
		conditions = append(conditions, fmt.Sprintf("sub_category = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC, sequence_no DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.Record
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// UpdatePayload replaces the payload (and optionally the sub-category) of a
// record still in an editable state. Returns sql.ErrNoRows when the record is
// no longer editable, so the caller can distinguish a lost race.
func (r *RecordRepository) UpdatePayload(ctx context.Context, id string, payload []byte, subCategory *string) error {
	setParts := []string{"payload = :payload", "updated_at = :updated_at"}
	if subCategory != nil {
		setParts = append(setParts, "sub_category = :sub_category")
	}
	query := fmt.Sprintf(`UPDATE records SET %s WHERE id = :id AND status IN ('%s', '%s')`,
		strings.Join(setParts, ", "),
		models.RecordStatusDraft,
		models.RecordStatusNeedsRevision,
	)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":           id,
		"payload":      payload,
		"sub_category": subCategory,
		"updated_at":   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update record payload: %w", err)
	}
	return requireRowsAffected(result)
}

// TransitionParams groups inputs for a guarded status flip.
type TransitionParams struct {
	ID     string
	From   []models.RecordStatus
	To     models.RecordStatus
	Remark *string
}

// Transition flips the status only when the record is still in one of the
// expected source states. Zero affected rows surface as sql.ErrNoRows so a
// lost race is distinguishable from success.
func (r *RecordRepository) Transition(ctx context.Context, params TransitionParams) error {
	result, err := r.db.ExecContext(ctx, transitionQuery(params.From),
		params.ID, params.To, params.Remark, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("transition record: %w", err)
	}
	return requireRowsAffected(result)
}

// Sign flips the record to SIGNED and appends the ledger entry in one
// transaction; a crash between the two can never leave a signed record
// without its signature.
func (r *RecordRepository) Sign(ctx context.Context, params TransitionParams, signature *models.Signature) error {
	if signature.ID == "" {
		signature.ID = uuid.NewString()
	}
	if signature.SignedAt.IsZero() {
		signature.SignedAt = time.Now().UTC()
	}
	params.To = models.RecordStatusSigned

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sign record: %w", err)
	}

	result, err := tx.ExecContext(ctx, transitionQuery(params.From),
		params.ID, params.To, params.Remark, time.Now().UTC())
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("sign record: %w", err)
	}
	if err := requireRowsAffected(result); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	const insert = `INSERT INTO signatures (id, signed_by_id, entity_type, entity_id, remark, signed_at)
		VALUES (:id, :signed_by_id, :entity_type, :entity_id, :remark, :signed_at)`
	if _, err := tx.NamedExecContext(ctx, insert, signature); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("append signature: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sign record: %w", err)
	}
	return nil
}

// Delete removes a record while it is still a draft. Submitted and signed
// records are never deletable.
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM records WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, models.RecordStatusDraft)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return requireRowsAffected(result)
}

// CategoryProgress aggregates per-category counts for one owner.
func (r *RecordRepository) CategoryProgress(ctx context.Context, ownerID string) ([]models.CategoryProgress, error) {
	const query = `SELECT category,
	       COUNT(*) AS total,
	       COUNT(*) FILTER (WHERE status = 'SIGNED') AS signed,
	       COUNT(*) FILTER (WHERE status IN ('SUBMITTED', 'NEEDS_REVISION')) AS pending,
	       COUNT(*) FILTER (WHERE status = 'DRAFT') AS drafts,
	       MAX(updated_at) AS last_updated
	FROM records WHERE owner_id = $1
	GROUP BY category ORDER BY category`
	var progress []models.CategoryProgress
	if err := r.db.SelectContext(ctx, &progress, query, ownerID); err != nil {
		return nil, fmt.Errorf("category progress: %w", err)
	}
	return progress, nil
}

// SubCategoryTallies returns the highest tally per sub-category for one
// owner+category partition.
func (r *RecordRepository) SubCategoryTallies(ctx context.Context, ownerID, cat string) (map[string]int, error) {
	const query = `SELECT sub_category, MAX(tally) AS tally
	FROM records WHERE owner_id = $1 AND category = $2 AND sub_category <> ''
	GROUP BY sub_category`
	rows, err := r.db.QueryxContext(ctx, query, ownerID, cat)
	if err != nil {
		return nil, fmt.Errorf("sub-category tallies: %w", err)
	}
	defer rows.Close()
	tallies := make(map[string]int)
	for rows.Next() {
		var sub string
		var tally int
		if err := rows.Scan(&sub, &tally); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		tallies[sub] = tally
	}
	return tallies, rows.Err()
}

func transitionQuery(from []models.RecordStatus) string {
	placeholders := make([]string, len(from))
	for i, status := range from {
		placeholders[i] = fmt.Sprintf("'%s'", status)
	}
	return fmt.Sprintf(`UPDATE records SET status = $2, reviewer_remark = $3, updated_at = $4 WHERE id = $1 AND status IN (%s)`,
		strings.Join(placeholders, ","))
}

func requireRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
