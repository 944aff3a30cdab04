package branches

import (
	"errors"
	"fmt"
	"strings"
)

// ApprovalStatus tracks human review state for a single translation.
type ApprovalStatus string

const (
	// StatusPending marks a translation that has not been reviewed.
	StatusPending ApprovalStatus = "PENDING"
	// StatusApproved marks a translation a reviewer has accepted.
	StatusApproved ApprovalStatus = "APPROVED"
	// StatusRejected marks a translation a reviewer has declined.
	StatusRejected ApprovalStatus = "REJECTED"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidBranchID indicates that a branch identifier is empty or exceeds storage bounds.
	ErrInvalidBranchID = errors.New("branches: invalid branch id")
	// ErrInvalidUserID indicates that a user identifier is empty or exceeds storage bounds.
	ErrInvalidUserID = errors.New("branches: invalid user id")
	// ErrInvalidLanguage indicates that a language code is empty or exceeds storage bounds.
	ErrInvalidLanguage = errors.New("branches: invalid language code")
	// ErrBranchNotFound indicates that a branch id does not resolve to a stored branch.
	ErrBranchNotFound = errors.New("branches: branch not found")
)

// BranchID represents a validated branch identifier.
type BranchID string

// NewBranchID validates raw input and returns a BranchID.
func NewBranchID(rawInput string) (BranchID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBranchID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidBranchID, maxIdentifierLength)
	}
	return BranchID(trimmed), nil
}

// String returns the underlying string identifier.
func (id BranchID) String() string {
	return string(id)
}

// UserID represents a validated user identifier.
type UserID string

// NewUserID validates raw input and returns a UserID.
func NewUserID(rawInput string) (UserID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidUserID, maxIdentifierLength)
	}
	return UserID(trimmed), nil
}

// String returns the underlying string identifier.
func (id UserID) String() string {
	return string(id)
}

// LanguageCode represents a validated BCP-47-ish language tag such as "en" or "pt-BR".
type LanguageCode string

// NewLanguageCode validates raw input and returns a lowercased LanguageCode.
func NewLanguageCode(rawInput string) (LanguageCode, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLanguage)
	}
	if len(trimmed) > 35 {
		return "", fmt.Errorf("%w: exceeds 35 characters", ErrInvalidLanguage)
	}
	return LanguageCode(strings.ToLower(trimmed)), nil
}

// String returns the underlying language tag.
func (code LanguageCode) String() string {
	return string(code)
}

// Branch models an independently editable collection of translation keys.
type Branch struct {
	BranchID       string  `gorm:"column:branch_id;primaryKey;size:190;not null"`
	ProjectID      string  `gorm:"column:project_id;size:190;not null;index:idx_branches_project,priority:1"`
	Name           string  `gorm:"column:name;size:190;not null"`
	Slug           string  `gorm:"column:slug;size:190;not null;index:idx_branches_project,priority:2"`
	IsDefault      bool    `gorm:"column:is_default;not null;default:false"`
	SourceBranchID *string `gorm:"column:source_branch_id;size:190"`
	CreatedAtS     int64   `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Branch) TableName() string {
	return "branches"
}

// TranslationKey names a piece of localizable text within one branch.
// Keys are owned by their branch; equal (namespace, name) pairs in two
// branches are distinct rows correlated only by identity.
type TranslationKey struct {
	KeyID       string `gorm:"column:key_id;primaryKey;size:190;not null"`
	BranchID    string `gorm:"column:branch_id;size:190;not null;uniqueIndex:idx_keys_branch_identity,priority:1"`
	Namespace   string `gorm:"column:namespace;size:190;not null;uniqueIndex:idx_keys_branch_identity,priority:2"`
	Name        string `gorm:"column:name;size:190;not null;uniqueIndex:idx_keys_branch_identity,priority:3"`
	Description string `gorm:"column:description;type:text;not null;default:''"`
	SourcePath  string `gorm:"column:source_path;size:512;not null;default:''"`
	CreatedAtS  int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (TranslationKey) TableName() string {
	return "translation_keys"
}

// Translation holds the per-language value and curation state for a key.
type Translation struct {
	TranslationID   string         `gorm:"column:translation_id;primaryKey;size:190;not null"`
	KeyID           string         `gorm:"column:key_id;size:190;not null;uniqueIndex:idx_translations_key_language,priority:1"`
	Language        string         `gorm:"column:language;size:35;not null;uniqueIndex:idx_translations_key_language,priority:2"`
	Value           string         `gorm:"column:value;type:text;not null"`
	Status          ApprovalStatus `gorm:"column:status;size:16;not null;default:'PENDING'"`
	StatusUpdatedAt int64          `gorm:"column:status_updated_at_s;not null;default:0"`
	StatusUpdatedBy string         `gorm:"column:status_updated_by;size:190;not null;default:''"`
	QualityScore    *float64       `gorm:"column:quality_score"`
}

// TableName provides the explicit table binding for GORM.
func (Translation) TableName() string {
	return "translations"
}

// MergeRecord captures an append-only audit trail of executed merges.
type MergeRecord struct {
	MergeID             string `gorm:"column:merge_id;primaryKey;size:190;not null"`
	SourceBranchID      string `gorm:"column:source_branch_id;size:190;not null"`
	TargetBranchID      string `gorm:"column:target_branch_id;size:190;not null;index:idx_merges_target_time,priority:1"`
	ActorID             string `gorm:"column:actor_id;size:190;not null"`
	KeysAdded           int    `gorm:"column:keys_added;not null"`
	TranslationsUpdated int    `gorm:"column:translations_updated;not null"`
	KeysDeleted         int    `gorm:"column:keys_deleted;not null"`
	ConflictsResolved   int    `gorm:"column:conflicts_resolved;not null"`
	AppliedAtS          int64  `gorm:"column:applied_at_s;not null;index:idx_merges_target_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (MergeRecord) TableName() string {
	return "branch_merges"
}

// KeyIdentity correlates translation keys across branches.
type KeyIdentity struct {
	Namespace string
	Name      string
}

// String renders the identity in "namespace.name" form for logs and errors.
func (id KeyIdentity) String() string {
	if id.Namespace == "" {
		return id.Name
	}
	return id.Namespace + "." + id.Name
}

// BranchRef carries the id/name context of a diffed branch.
type BranchRef struct {
	BranchID string
	Name     string
}

// KeySnapshot is one key with its per-language translations, detached from storage.
type KeySnapshot struct {
	Identity     KeyIdentity
	Description  string
	SourcePath   string
	Translations map[LanguageCode]TranslationSnapshot
}

// TranslationSnapshot is the value/status pair the diff engine compares.
type TranslationSnapshot struct {
	Value  string
	Status ApprovalStatus
}

// BranchSnapshot is the full key/translation state of one branch at load time.
type BranchSnapshot struct {
	Branch BranchRef
	Keys   map[KeyIdentity]KeySnapshot
}

// MergeResult reports what a merge changed in the target branch.
type MergeResult struct {
	KeysAdded           int
	TranslationsUpdated int
	KeysDeleted         int
	ConflictsResolved   int
}

// Empty reports whether the merge changed nothing.
func (r MergeResult) Empty() bool {
	return r.KeysAdded == 0 && r.TranslationsUpdated == 0 && r.KeysDeleted == 0 && r.ConflictsResolved == 0
}
