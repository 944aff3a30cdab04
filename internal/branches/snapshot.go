package branches

import (
	"errors"

	"gorm.io/gorm"
)

// snapshotBatchSize bounds how many rows each snapshot query pulls so large
// branches do not materialize in a single result set.
const snapshotBatchSize = 500

// storedSnapshot pairs the comparable snapshot with the row identifiers the
// merge needs for write-back.
type storedSnapshot struct {
	snapshot       BranchSnapshot
	keyIDs         map[KeyIdentity]string
	translationIDs map[KeyIdentity]map[LanguageCode]string
}

func loadBranch(db *gorm.DB, branchID BranchID) (Branch, error) {
	var branch Branch
	err := db.Where("branch_id = ?", branchID.String()).Take(&branch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Branch{}, ErrBranchNotFound
	}
	if err != nil {
		return Branch{}, err
	}
	return branch, nil
}

func loadStoredSnapshot(db *gorm.DB, branch Branch) (storedSnapshot, error) {
	stored := storedSnapshot{
		snapshot: BranchSnapshot{
			Branch: BranchRef{BranchID: branch.BranchID, Name: branch.Name},
			Keys:   make(map[KeyIdentity]KeySnapshot),
		},
		keyIDs:         make(map[KeyIdentity]string),
		translationIDs: make(map[KeyIdentity]map[LanguageCode]string),
	}

	identityByKeyID := make(map[string]KeyIdentity)
	lastKeyID := ""
	for {
		var keys []TranslationKey
		err := db.Where("branch_id = ? AND key_id > ?", branch.BranchID, lastKeyID).
			Order("key_id ASC").
			Limit(snapshotBatchSize).
			Find(&keys).Error
		if err != nil {
			return storedSnapshot{}, err
		}
		if len(keys) == 0 {
			break
		}
		for _, key := range keys {
			identity := KeyIdentity{Namespace: key.Namespace, Name: key.Name}
			stored.snapshot.Keys[identity] = KeySnapshot{
				Identity:     identity,
				Description:  key.Description,
				SourcePath:   key.SourcePath,
				Translations: make(map[LanguageCode]TranslationSnapshot),
			}
			stored.keyIDs[identity] = key.KeyID
			stored.translationIDs[identity] = make(map[LanguageCode]string)
			identityByKeyID[key.KeyID] = identity
			lastKeyID = key.KeyID
		}
		if len(keys) < snapshotBatchSize {
			break
		}
	}

	lastTranslationID := ""
	for {
		var rows []Translation
		err := db.Where("key_id IN (?) AND translation_id > ?",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&TranslationKey{}).
				Select("key_id").
				Where("branch_id = ?", branch.BranchID),
			lastTranslationID).
			Order("translation_id ASC").
			Limit(snapshotBatchSize).
			Find(&rows).Error
		if err != nil {
			return storedSnapshot{}, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			lastTranslationID = row.TranslationID
			identity, known := identityByKeyID[row.KeyID]
			if !known {
				continue
			}
			language := LanguageCode(row.Language)
			stored.snapshot.Keys[identity].Translations[language] = TranslationSnapshot{
				Value:  row.Value,
				Status: row.Status,
			}
			stored.translationIDs[identity][language] = row.TranslationID
		}
		if len(rows) < snapshotBatchSize {
			break
		}
	}

	return stored, nil
}
