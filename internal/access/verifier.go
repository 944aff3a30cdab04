package access

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrForbidden indicates the user holds no role satisfying the requirement.
// The diff/merge engine propagates it unchanged.
var ErrForbidden = errors.New("access: forbidden")

// VerifierConfig describes the dependencies for membership lookups.
type VerifierConfig struct {
	Database *gorm.DB
}

// Verifier answers role checks against the project membership table.
type Verifier struct {
	db *gorm.DB
}

// NewVerifier constructs a membership-backed access verifier.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("access: database connection required")
	}
	return &Verifier{db: cfg.Database}, nil
}

// VerifyAccess returns the user's role on the project when it satisfies at
// least one of the required roles. With no required roles any membership
// passes. A missing membership or an insufficient role is ErrForbidden.
func (v *Verifier) VerifyAccess(ctx context.Context, userID, projectID string, requiredRoles ...Role) (Role, error) {
	if userID == "" || projectID == "" {
		return "", ErrForbidden
	}

	var membership ProjectMembership
	err := v.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Take(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrForbidden
	}
	if err != nil {
		return "", err
	}

	if len(requiredRoles) == 0 {
		return membership.Role, nil
	}
	for _, required := range requiredRoles {
		if membership.Role.Satisfies(required) {
			return membership.Role, nil
		}
	}
	return "", fmt.Errorf("%w: role %q on project %s", ErrForbidden, membership.Role, projectID)
}
