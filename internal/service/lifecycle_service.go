package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/residency-logbook-api/internal/category"
	"github.com/noah-isme/residency-logbook-api/internal/dto"
	"github.com/noah-isme/residency-logbook-api/internal/models"
	"github.com/noah-isme/residency-logbook-api/internal/repository"
	appErrors "github.com/noah-isme/residency-logbook-api/pkg/errors"
)

type recordStore interface {
	Create(ctx context.Context, record *models.Record, tallyPartitioned bool) error
	GetByID(ctx context.Context, id string) (*models.Record, error)
	List(ctx context.Context, filter models.RecordFilter) ([]models.Record, error)
	UpdatePayload(ctx context.Context, id string, payload []byte, subCategory *string) error
	Transition(ctx context.Context, params repository.TransitionParams) error
	Sign(ctx context.Context, params repository.TransitionParams, signature *models.Signature) error
	Delete(ctx context.Context, id string) error
}

type assignmentDirectory interface {
	StudentIDsForFaculty(ctx context.Context, facultyID string) ([]string, error)
	Exists(ctx context.Context, facultyID, studentID string) (bool, error)
}

type signatureLedger interface {
	ListFor(ctx context.Context, entityType, entityID string) ([]models.Signature, error)
}

type autoReviewPolicy interface {
	IsAutoReviewEnabled(ctx context.Context, cat string) (bool, error)
}

type transitionPublisher interface {
	Publish(event RecordTransitioned)
}

// LifecycleService is the generic entry engine shared by every record
// category: numbering at creation, the status state machine, role-scoped
// visibility and the signature side effect.
type LifecycleService struct {
	records        recordStore
	assignments    assignmentDirectory
	ledger         signatureLedger
	policy         autoReviewPolicy
	events         transitionPublisher
	logger         *zap.Logger
	systemSignerID string
}

// LifecycleServiceOption configures the service.
type LifecycleServiceOption func(*LifecycleService)

// WithSystemSignerID overrides the identity attributed to auto-review
// signatures.
func WithSystemSignerID(id string) LifecycleServiceOption {
	return func(s *LifecycleService) {
		if id != "" {
			s.systemSignerID = id
		}
	}
}

// WithTransitionPublisher wires the domain event sink.
func WithTransitionPublisher(pub transitionPublisher) LifecycleServiceOption {
	return func(s *LifecycleService) {
		if pub != nil {
			s.events = pub
		}
	}
}

// NewLifecycleService constructs the engine.
func NewLifecycleService(records recordStore, assignments assignmentDirectory, ledger signatureLedger, policy autoReviewPolicy, logger *zap.Logger, opts ...LifecycleServiceOption) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &LifecycleService{
		records:        records,
		assignments:    assignments,
		ledger:         ledger,
		policy:         policy,
		events:         noopPublisher{},
		logger:         logger,
		systemSignerID: "system:auto-review",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create opens a new draft entry, stamping sequence number and tally.
// Payload validation happens before numbering so a rejected write never burns
// a sequence number.
func (s *LifecycleService) Create(ctx context.Context, req dto.CreateRecordRequest, actor *models.JWTClaims) (*models.Record, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students create logbook entries")
	}
	spec, ok := category.Lookup(req.Category)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category: %s", req.Category))
	}
	sub, ok := spec.CanonicalSubCategory(strings.TrimSpace(req.SubCategory))
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sub-category %q not allowed for %s", req.SubCategory, spec.Tag))
	}
	if err := validatePayload(spec, req.Payload); err != nil {
		return nil, err
	}

	record := &models.Record{
		OwnerID:     actor.UserID,
		Category:    spec.Tag,
		SubCategory: sub,
		Payload:     append([]byte(nil), req.Payload...),
	}
	if err := s.records.Create(ctx, record, spec.TallyPartitioned); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "sequence number already taken, retry the create")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create record")
	}

	s.publish(record, "", models.RecordStatusDraft, actor.UserID)
	return record, nil
}

// Get returns one record after re-checking the caller's visibility, so a
// guessed id is indistinguishable from a missing one.
func (s *LifecycleService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Record, error) {
	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisibility(ctx, record, actor); err != nil {
		return nil, err
	}
	return record, nil
}

// List returns records visible to the caller, applying the role scope before
// any user-supplied filter.
func (s *LifecycleService) List(ctx context.Context, query dto.RecordQuery, actor *models.JWTClaims) ([]models.Record, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.RecordFilter{
		Category:    strings.ToLower(strings.TrimSpace(query.Category)),
		SubCategory: strings.TrimSpace(query.SubCategory),
		Status:      query.Status,
		Limit:       query.Limit,
		Offset:      query.Offset,
	}

	switch actor.Role {
	case models.RoleStudent:
		filter.OwnerID = actor.UserID
	case models.RoleFaculty:
		assigned, err := s.assignments.StudentIDsForFaculty(ctx, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve assigned students")
		}
		filter.Scoped = true
		if query.OwnerID != "" {
			if !contains(assigned, query.OwnerID) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to you")
			}
			filter.OwnerID = query.OwnerID
		} else {
			filter.OwnerIDs = assigned
		}
	case models.RoleHOD:
		filter.OwnerID = query.OwnerID
	default:
		return nil, appErrors.ErrForbidden
	}

	records, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list records")
	}
	return records, nil
}

// Update edits the payload of a draft or revision entry. Signed records are
// immutable; submitted records must be sent back for revision first.
func (s *LifecycleService) Update(ctx context.Context, id string, req dto.UpdateRecordRequest, actor *models.JWTClaims) (*models.Record, error) {
	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if record.OwnerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner may edit a record")
	}
	switch record.Status {
	case models.RecordStatusDraft, models.RecordStatusNeedsRevision:
	case models.RecordStatusSigned:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "signed records are immutable")
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "submitted records cannot be edited")
	}

	spec, ok := category.Lookup(record.Category)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("record has unregistered category: %s", record.Category))
	}
	if err := validatePayload(spec, req.Payload); err != nil {
		return nil, err
	}

	var sub *string
	if req.SubCategory != nil {
		trimmed := strings.TrimSpace(*req.SubCategory)
		canonical, ok := spec.CanonicalSubCategory(trimmed)
		if !ok || canonical != record.SubCategory {
			if !spec.SubCategoryMutable {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sub-category is fixed for %s", spec.Tag))
			}
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sub-category %q not allowed for %s", trimmed, spec.Tag))
			}
			sub = &canonical
		}
	}

	if err := s.records.UpdatePayload(ctx, id, req.Payload, sub); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "record is no longer editable")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update record")
	}

	record.Payload = append([]byte(nil), req.Payload...)
	if sub != nil {
		record.SubCategory = *sub
	}
	record.UpdatedAt = time.Now().UTC()
	return record, nil
}

// Delete removes a draft. Anything past DRAFT is part of the review trail
// and stays.
func (s *LifecycleService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	record, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if record.OwnerID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner may delete a record")
	}
	if record.Status != models.RecordStatusDraft {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "only drafts can be deleted")
	}
	if err := s.records.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "record is no longer a draft")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete record")
	}
	s.publish(record, record.Status, "", actor.UserID)
	return nil
}

// Submit moves a draft or revision into the review queue. When auto-review
// is enabled for the category the record is signed immediately by the system
// signer, in the same transaction as the status flip.
func (s *LifecycleService) Submit(ctx context.Context, id string, actor *models.JWTClaims) (*models.Record, error) {
	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if record.OwnerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner may submit a record")
	}
	switch record.Status {
	case models.RecordStatusDraft, models.RecordStatusNeedsRevision:
	case models.RecordStatusSubmitted:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "record is already submitted")
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "signed records cannot be resubmitted")
	}

	autoReview, err := s.policy.IsAutoReviewEnabled(ctx, record.Category)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read review policy")
	}

	from := record.Status
	if autoReview {
		signature := &models.Signature{
			SignedByID: s.systemSignerID,
			EntityType: record.Category,
			EntityID:   record.ID,
		}
		if err := s.records.Sign(ctx, repository.TransitionParams{ID: id, From: []models.RecordStatus{from}}, signature); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "record state changed, refetch and retry")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to auto-sign record")
		}
		record.Status = models.RecordStatusSigned
		record.ReviewerRemark = nil
	} else {
		if err := s.records.Transition(ctx, repository.TransitionParams{ID: id, From: []models.RecordStatus{from}, To: models.RecordStatusSubmitted}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "record state changed, refetch and retry")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit record")
		}
		record.Status = models.RecordStatusSubmitted
	}
	record.UpdatedAt = time.Now().UTC()

	s.publish(record, from, record.Status, actor.UserID)
	return record, nil
}

// Sign approves a submitted record. The ledger entry is appended in the same
// transaction as the status flip; losing the race to another reviewer
// surfaces as a conflict.
func (s *LifecycleService) Sign(ctx context.Context, id string, req dto.ReviewActionRequest, actor *models.JWTClaims) (*models.Record, error) {
	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkReviewer(ctx, record, actor); err != nil {
		return nil, err
	}
	if record.Status != models.RecordStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "record is not submitted")
	}

	remark := optionalString(req.Remark)
	signature := &models.Signature{
		SignedByID: actor.UserID,
		EntityType: record.Category,
		EntityID:   record.ID,
		Remark:     remark,
	}
	params := repository.TransitionParams{
		ID:     id,
		From:   []models.RecordStatus{models.RecordStatusSubmitted},
		Remark: remark,
	}
	if err := s.records.Sign(ctx, params, signature); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "record is no longer submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign record")
	}

	record.Status = models.RecordStatusSigned
	record.ReviewerRemark = remark
	record.UpdatedAt = time.Now().UTC()
	s.publish(record, models.RecordStatusSubmitted, models.RecordStatusSigned, actor.UserID)
	return record, nil
}

// Reject sends a submitted record back for revision. A remark is required so
// the student knows what to fix.
func (s *LifecycleService) Reject(ctx context.Context, id string, req dto.ReviewActionRequest, actor *models.JWTClaims) (*models.Record, error) {
	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkReviewer(ctx, record, actor); err != nil {
		return nil, err
	}
	if record.Status != models.RecordStatusSubmitted {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "record is not submitted")
	}
	remark := optionalString(req.Remark)
	if remark == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "remark is required to reject")
	}

	params := repository.TransitionParams{
		ID:     id,
		From:   []models.RecordStatus{models.RecordStatusSubmitted},
		To:     models.RecordStatusNeedsRevision,
		Remark: remark,
	}
	if err := s.records.Transition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "record is no longer submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject record")
	}

	record.Status = models.RecordStatusNeedsRevision
	record.ReviewerRemark = remark
	record.UpdatedAt = time.Now().UTC()
	s.publish(record, models.RecordStatusSubmitted, models.RecordStatusNeedsRevision, actor.UserID)
	return record, nil
}

// Signatures lists the ledger entries for one record, visibility-checked.
func (s *LifecycleService) Signatures(ctx context.Context, id string, actor *models.JWTClaims) ([]models.Signature, error) {
	record, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisibility(ctx, record, actor); err != nil {
		return nil, err
	}
	signatures, err := s.ledger.ListFor(ctx, record.Category, record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list signatures")
	}
	return signatures, nil
}

func (s *LifecycleService) fetch(ctx context.Context, id string) (*models.Record, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	return record, nil
}

func (s *LifecycleService) checkVisibility(ctx context.Context, record *models.Record, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleHOD:
		return nil
	case models.RoleStudent:
		if record.OwnerID == actor.UserID {
			return nil
		}
		return appErrors.ErrNotFound
	case models.RoleFaculty:
		assigned, err := s.assignments.Exists(ctx, actor.UserID, record.OwnerID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
		}
		if assigned {
			return nil
		}
		return appErrors.ErrNotFound
	default:
		return appErrors.ErrForbidden
	}
}

func (s *LifecycleService) checkReviewer(ctx context.Context, record *models.Record, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleHOD:
		return nil
	case models.RoleFaculty:
		assigned, err := s.assignments.Exists(ctx, actor.UserID, record.OwnerID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
		}
		if !assigned {
			return appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to you")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "only reviewers may act on submissions")
	}
}

func (s *LifecycleService) publish(record *models.Record, from, to models.RecordStatus, actorID string) {
	s.events.Publish(RecordTransitioned{
		RecordID: record.ID,
		OwnerID:  record.OwnerID,
		Category: record.Category,
		From:     from,
		To:       to,
		ActorID:  actorID,
		At:       time.Now().UTC(),
	})
}

func validatePayload(spec category.Spec, payload []byte) error {
	if len(payload) == 0 || !json.Valid(payload) {
		return appErrors.Clone(appErrors.ErrValidation, "payload must be valid JSON")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "payload must be a JSON object")
	}
	for _, key := range spec.RequiredKeys {
		if _, ok := fields[key]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("payload missing required field: %s", key))
		}
	}
	return nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

type noopPublisher struct{}

func (noopPublisher) Publish(RecordTransitioned) {}
