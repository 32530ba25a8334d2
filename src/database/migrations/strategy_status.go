package migrations

import (
	"gorm.io/gorm"

	"signalrelay/src/model"
)

// normalizeStrategyStatus rewrites free-form status values ("active", "", NULL, "running")
// to the two values the registry understands.
func normalizeStrategyStatus(tx *gorm.DB) error {
	if err := tx.Model(&model.Strategy{}).
		Where("LOWER(status) = ? AND status <> ?", "active", model.StrategyStatusActive).
		Update("status", model.StrategyStatusActive).Error; err != nil {
		return err
	}

	return tx.Model(&model.Strategy{}).
		Where("status IS NULL OR status NOT IN ?", []string{model.StrategyStatusActive, model.StrategyStatusInactive}).
		Update("status", model.StrategyStatusInactive).Error
}
