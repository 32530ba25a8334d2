package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalrelay/src/database"
	"signalrelay/src/model"
)

// ExceptionRepository handles persistence of audit exceptions.
type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{
		db: database.MainDB,
	}
}

func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists a new exception in the database.
func (r *ExceptionRepository) Create(ctx context.Context, exc *model.Exception) error {
	logger.WithFields(map[string]interface{}{
		"service":     exc.Service,
		"module":      exc.Module,
		"method":      exc.Method,
		"level":       exc.Level,
		"strategy_id": exc.StrategyID,
	}).Warn("Persisting exception")

	return r.db.WithContext(ctx).Create(exc).Error
}

// ListByStrategy returns the newest exceptions of a strategy first.
func (r *ExceptionRepository) ListByStrategy(ctx context.Context, strategyID uint, limit int) ([]model.Exception, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.Exception
	err := r.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
