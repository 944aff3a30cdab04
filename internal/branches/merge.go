package branches

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// mergeApplier writes one computed diff into the target branch. It runs
// entirely inside the merge transaction; any returned error aborts the whole
// merge.
type mergeApplier struct {
	tx           *gorm.DB
	target       Branch
	targetStored storedSnapshot
	idProvider   IDProvider
	now          time.Time
	actor        UserID
}

func (a *mergeApplier) apply(diff BranchDiffResult, resolved map[ConflictRef]Resolution, opts MergeOptions) (MergeResult, error) {
	var result MergeResult

	for _, added := range diff.Added {
		if err := a.createKey(added); err != nil {
			return MergeResult{}, err
		}
		result.KeysAdded++
	}

	for _, change := range diff.Modified {
		// The incoming value has not been curated in its new branch.
		if err := a.writeTranslation(change.Identity, change.Language, change.SourceValue, StatusPending); err != nil {
			return MergeResult{}, err
		}
		result.TranslationsUpdated++
	}

	for _, conflict := range diff.Conflicts {
		ref := ConflictRef{Identity: conflict.Identity, Language: conflict.Language}
		resolution, ok := resolved[ref]
		if !ok {
			return MergeResult{}, fmt.Errorf("conflict %s has no resolution", ref)
		}
		switch resolution.Choice {
		case ChooseTarget:
			// Target keeps its curated value and status untouched.
		case ChooseSource:
			if err := a.writeTranslation(conflict.Identity, conflict.Language, conflict.SourceValue, StatusApproved); err != nil {
				return MergeResult{}, err
			}
		case ChooseOverride:
			if err := a.writeTranslation(conflict.Identity, conflict.Language, resolution.OverrideValue, StatusApproved); err != nil {
				return MergeResult{}, err
			}
		default:
			return MergeResult{}, fmt.Errorf("%w: %q", ErrInvalidResolutionChoice, resolution.Choice)
		}
		result.ConflictsResolved++
	}

	if opts.PropagateDeletions {
		for _, deleted := range diff.Deleted {
			if err := a.deleteKey(deleted.Identity); err != nil {
				return MergeResult{}, err
			}
			result.KeysDeleted++
		}
	}

	return result, nil
}

func (a *mergeApplier) createKey(added AddedKey) error {
	keyID, err := a.idProvider.NewID()
	if err != nil {
		return err
	}
	key := TranslationKey{
		KeyID:       keyID,
		BranchID:    a.target.BranchID,
		Namespace:   added.Identity.Namespace,
		Name:        added.Identity.Name,
		Description: added.Description,
		SourcePath:  added.SourcePath,
		CreatedAtS:  a.now.Unix(),
	}
	if err := a.tx.Create(&key).Error; err != nil {
		return err
	}

	languages := make([]LanguageCode, 0, len(added.Translations))
	for language := range added.Translations {
		languages = append(languages, language)
	}
	sort.Slice(languages, func(i, j int) bool { return languages[i] < languages[j] })

	for _, language := range languages {
		translationID, err := a.idProvider.NewID()
		if err != nil {
			return err
		}
		translation := Translation{
			TranslationID:   translationID,
			KeyID:           keyID,
			Language:        language.String(),
			Value:           added.Translations[language],
			Status:          StatusPending,
			StatusUpdatedAt: a.now.Unix(),
			StatusUpdatedBy: a.actor.String(),
		}
		if err := a.tx.Create(&translation).Error; err != nil {
			return err
		}
	}
	return nil
}

func (a *mergeApplier) writeTranslation(identity KeyIdentity, language LanguageCode, value string, status ApprovalStatus) error {
	translationID, exists := a.targetStored.translationIDs[identity][language]
	if exists {
		return a.tx.Model(&Translation{}).
			Where("translation_id = ?", translationID).
			Updates(map[string]interface{}{
				"value":               value,
				"status":              status,
				"status_updated_at_s": a.now.Unix(),
				"status_updated_by":   a.actor.String(),
			}).Error
	}

	keyID, known := a.targetStored.keyIDs[identity]
	if !known {
		return fmt.Errorf("target branch has no key %s", identity)
	}
	translationID, err := a.idProvider.NewID()
	if err != nil {
		return err
	}
	translation := Translation{
		TranslationID:   translationID,
		KeyID:           keyID,
		Language:        language.String(),
		Value:           value,
		Status:          status,
		StatusUpdatedAt: a.now.Unix(),
		StatusUpdatedBy: a.actor.String(),
	}
	return a.tx.Create(&translation).Error
}

func (a *mergeApplier) deleteKey(identity KeyIdentity) error {
	keyID, known := a.targetStored.keyIDs[identity]
	if !known {
		return fmt.Errorf("target branch has no key %s", identity)
	}
	if err := a.tx.Where("key_id = ?", keyID).Delete(&Translation{}).Error; err != nil {
		return err
	}
	return a.tx.Where("key_id = ?", keyID).Delete(&TranslationKey{}).Error
}
