package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/localizd/localizd/backend/internal/branches"
)

const (
	migrationNormalizeLanguages   = "2026-07-21_normalize_translation_languages"
	migrationBackfillStatusStamps = "2026-08-04_backfill_status_timestamps"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeLanguages, apply: normalizeTranslationLanguages},
		{name: migrationBackfillStatusStamps, apply: backfillStatusTimestamps},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeTranslationLanguages lowercases language tags written before the
// validated LanguageCode constructor was introduced.
func normalizeTranslationLanguages(db *gorm.DB) error {
	return db.Exec("UPDATE translations SET language = lower(language) WHERE language <> lower(language);").Error
}

// backfillStatusTimestamps stamps rows created before status transitions were
// tracked so status_updated_at_s is never zero for curated content.
func backfillStatusTimestamps(db *gorm.DB) error {
	return db.Model(&branches.Translation{}).
		Where("status <> ? AND status_updated_at_s = 0", branches.StatusPending).
		Update("status_updated_at_s", time.Now().UTC().Unix()).Error
}
