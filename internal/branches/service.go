package branches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/localizd/localizd/backend/internal/access"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingVerifier   = errors.New("access verifier is required")
	errCrossProject      = errors.New("branches belong to different projects")
	noOpLogger           = zap.NewNop()
)

// ServiceError wraps engine failures with a stable operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code exposes the operation.reason identifier for transport-layer mapping.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew  = "branches.service.new"
	opComputeDiff = "branches.compute_diff"
	opMerge       = "branches.merge"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// IDProvider issues identifiers for rows created during a merge.
type IDProvider interface {
	NewID() (string, error)
}

// AccessVerifier checks that a user holds one of the required roles on a
// project. Implemented by the access package; injected so the engine never
// reaches into a global registry.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, userID, projectID string, requiredRoles ...access.Role) (access.Role, error)
}

// ServiceConfig describes the collaborators the diff/merge engine depends on.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Access     AccessVerifier
	Events     EventPublisher
	Logger     *zap.Logger
}

// Service computes branch diffs and executes merges. Diff computation is
// read-only and safe to run concurrently; merges into the same target branch
// are serialized by a row lock on the target branch inside the transaction.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	access     AccessVerifier
	events     EventPublisher
	logger     *zap.Logger
}

type noOpPublisher struct{}

func (noOpPublisher) PublishBranchMerged(BranchMergedEvent) {}

// NewService validates the configuration and constructs the engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Access == nil {
		return nil, newServiceError(opServiceNew, "missing_access_verifier", errMissingVerifier)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	events := cfg.Events
	if events == nil {
		events = noOpPublisher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		access:     cfg.Access,
		events:     events,
		logger:     logger,
	}, nil
}

// ProjectIDForBranch resolves the owning project of a branch.
func (s *Service) ProjectIDForBranch(ctx context.Context, branchID BranchID) (string, error) {
	branch, err := loadBranch(s.db.WithContext(ctx), branchID)
	if err != nil {
		return "", err
	}
	return branch.ProjectID, nil
}

// ComputeDiff classifies every difference between the source and target
// branches. It never writes; repository failures propagate unchanged.
func (s *Service) ComputeDiff(ctx context.Context, caller UserID, sourceID, targetID BranchID) (BranchDiffResult, error) {
	db := s.db.WithContext(ctx)

	source, target, err := s.loadBranchPair(ctx, db, opComputeDiff, caller, sourceID, targetID, access.RoleViewer)
	if err != nil {
		return BranchDiffResult{}, err
	}

	sourceStored, err := loadStoredSnapshot(db, source)
	if err != nil {
		s.logError(opComputeDiff, "source_snapshot_failed", err, zap.String("branch_id", source.BranchID))
		return BranchDiffResult{}, newServiceError(opComputeDiff, "source_snapshot_failed", err)
	}
	targetStored, err := loadStoredSnapshot(db, target)
	if err != nil {
		s.logError(opComputeDiff, "target_snapshot_failed", err, zap.String("branch_id", target.BranchID))
		return BranchDiffResult{}, newServiceError(opComputeDiff, "target_snapshot_failed", err)
	}

	return computeDiff(sourceStored.snapshot, targetStored.snapshot), nil
}

// MergeOptions tunes optional merge behavior.
type MergeOptions struct {
	// PropagateDeletions removes target-only keys instead of treating the
	// deleted bucket as informational.
	PropagateDeletions bool
}

// MergeBranches recomputes the diff under a transaction and applies the
// source branch's changes to the target branch. A non-empty conflict set must
// be covered exactly by the supplied resolutions or the merge is rejected
// before any write. The merge is all-or-nothing: any write failure rolls back
// the whole transaction.
func (s *Service) MergeBranches(ctx context.Context, caller UserID, sourceID, targetID BranchID, resolutions []Resolution, opts MergeOptions) (MergeResult, error) {
	db := s.db.WithContext(ctx)

	source, target, err := s.loadBranchPair(ctx, db, opMerge, caller, sourceID, targetID, access.RoleEditor)
	if err != nil {
		return MergeResult{}, err
	}

	var result MergeResult
	txErr := db.Transaction(func(tx *gorm.DB) error {
		// Lock the target branch row so concurrent merges into the same
		// target cannot interleave with a stale diff.
		var locked Branch
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("branch_id = ?", target.BranchID).
			Take(&locked).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBranchNotFound
		}
		if err != nil {
			s.logError(opMerge, "target_lock_failed", err, zap.String("branch_id", target.BranchID))
			return newServiceError(opMerge, "target_lock_failed", err)
		}

		sourceStored, err := loadStoredSnapshot(tx, source)
		if err != nil {
			s.logError(opMerge, "source_snapshot_failed", err, zap.String("branch_id", source.BranchID))
			return newServiceError(opMerge, "source_snapshot_failed", err)
		}
		targetStored, err := loadStoredSnapshot(tx, locked)
		if err != nil {
			s.logError(opMerge, "target_snapshot_failed", err, zap.String("branch_id", locked.BranchID))
			return newServiceError(opMerge, "target_snapshot_failed", err)
		}

		diff := computeDiff(sourceStored.snapshot, targetStored.snapshot)
		resolved, err := validateResolutions(diff.Conflicts, resolutions)
		if err != nil {
			return err
		}

		applier := mergeApplier{
			tx:           tx,
			target:       locked,
			targetStored: targetStored,
			idProvider:   s.idProvider,
			now:          s.clock().UTC(),
			actor:        caller,
		}
		result, err = applier.apply(diff, resolved, opts)
		if err != nil {
			s.logError(opMerge, "apply_failed", err,
				zap.String("source_branch_id", source.BranchID),
				zap.String("target_branch_id", locked.BranchID))
			return newServiceError(opMerge, "apply_failed", err)
		}

		if result.Empty() {
			return nil
		}
		mergeID, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opMerge, "id_generation_failed", err)
			return newServiceError(opMerge, "id_generation_failed", err)
		}
		record := MergeRecord{
			MergeID:             mergeID,
			SourceBranchID:      source.BranchID,
			TargetBranchID:      locked.BranchID,
			ActorID:             caller.String(),
			KeysAdded:           result.KeysAdded,
			TranslationsUpdated: result.TranslationsUpdated,
			KeysDeleted:         result.KeysDeleted,
			ConflictsResolved:   result.ConflictsResolved,
			AppliedAtS:          applier.now.Unix(),
		}
		if err := tx.Create(&record).Error; err != nil {
			s.logError(opMerge, "audit_insert_failed", err, zap.String("merge_id", mergeID))
			return newServiceError(opMerge, "audit_insert_failed", err)
		}
		return nil
	})
	if txErr != nil {
		return MergeResult{}, txErr
	}

	if !result.Empty() {
		s.events.PublishBranchMerged(BranchMergedEvent{
			ProjectID:      target.ProjectID,
			SourceBranchID: source.BranchID,
			TargetBranchID: target.BranchID,
			ActorID:        caller.String(),
			Counts:         result,
			OccurredAt:     s.clock().UTC(),
		})
		s.logger.Info("branch merge applied",
			zap.String("source_branch_id", source.BranchID),
			zap.String("target_branch_id", target.BranchID),
			zap.Int("keys_added", result.KeysAdded),
			zap.Int("translations_updated", result.TranslationsUpdated),
			zap.Int("keys_deleted", result.KeysDeleted),
			zap.Int("conflicts_resolved", result.ConflictsResolved))
	}

	return result, nil
}

func (s *Service) loadBranchPair(ctx context.Context, db *gorm.DB, operation string, caller UserID, sourceID, targetID BranchID, requiredRole access.Role) (Branch, Branch, error) {
	source, err := loadBranch(db, sourceID)
	if err != nil {
		return Branch{}, Branch{}, err
	}
	target, err := loadBranch(db, targetID)
	if err != nil {
		return Branch{}, Branch{}, err
	}
	if source.ProjectID != target.ProjectID {
		return Branch{}, Branch{}, newServiceError(operation, "cross_project", errCrossProject)
	}
	if _, err := s.access.VerifyAccess(ctx, caller.String(), target.ProjectID, requiredRole); err != nil {
		return Branch{}, Branch{}, err
	}
	return source, target, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("branch engine error", attrs...)
}
