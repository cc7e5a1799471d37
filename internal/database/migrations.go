package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Migration records one applied SQL file from the migrations directory.
type Migration struct {
	ID        uint   `gorm:"primaryKey"`
	Version   string `gorm:"uniqueIndex;size:255"`
	AppliedAt string
}

// RunMigrations applies every *.sql file in dir that is not recorded yet, in
// file name order. rollback_*.sql files are skipped.
func RunMigrations(db *gorm.DB, dir string, log zerolog.Logger) error {
	if err := db.AutoMigrate(&Migration{}); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		filename := filepath.Base(file)
		if matched, _ := filepath.Match("rollback_*", filename); matched {
			continue
		}

		var count int64
		if err := db.Model(&Migration{}).Where("version = ?", filename).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			log.Debug().Str("version", filename).Msg("⏭️  Skipping migration (already applied)")
			continue
		}

		sqlContent, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		log.Info().Str("version", filename).Msg("▶️  Applying migration")
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(sqlContent)).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", filename, err)
			}
			migration := Migration{
				Version:   filename,
				AppliedAt: fmt.Sprintf("%v", tx.NowFunc()),
			}
			if err := tx.Create(&migration).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", filename, err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Info().Str("version", filename).Msg("✅ Applied migration")
	}

	log.Info().Msg("🎉 All migrations completed successfully")
	return nil
}

// RollbackMigration runs rollback_<version> from dir and forgets version.
func RollbackMigration(db *gorm.DB, dir, version string, log zerolog.Logger) error {
	var migration Migration
	if err := db.Where("version = ?", version).First(&migration).Error; err != nil {
		return fmt.Errorf("migration not found: %s", version)
	}

	rollbackFile := filepath.Join(dir, "rollback_"+version)
	sqlContent, err := os.ReadFile(rollbackFile)
	if err != nil {
		return fmt.Errorf("rollback file not found: %s", rollbackFile)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(string(sqlContent)).Error; err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		if err := tx.Delete(&migration).Error; err != nil {
			return fmt.Errorf("failed to delete migration record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("version", version).Msg("⏪ Rolled back migration")
	return nil
}

func GetAppliedMigrations(db *gorm.DB) ([]Migration, error) {
	var migrations []Migration
	if err := db.Order("applied_at DESC").Find(&migrations).Error; err != nil {
		return nil, err
	}
	return migrations, nil
}
