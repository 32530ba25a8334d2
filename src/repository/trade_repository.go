package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalrelay/src/database"
	"signalrelay/src/model"
)

// TradeRepository stores executed trades. Rows are append-only.
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository() *TradeRepository {
	return &TradeRepository{
		db: database.MainDB,
	}
}

func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

func (r *TradeRepository) Create(ctx context.Context, t *model.Trade) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "trade",
			"op":          "create",
			"strategy_id": t.StrategyID,
			"order":       t.VenueOrderID,
		}).WithError(err).Error("Failed to persist trade")
		return err
	}
	return nil
}

// ListByStrategy returns trades of one strategy, oldest first. limit <= 0 means no limit.
func (r *TradeRepository) ListByStrategy(ctx context.Context, strategyID uint, limit int) ([]model.Trade, error) {
	q := r.db.WithContext(ctx).
		Where("strategy_id = ?", strategyID).
		Order("timestamp ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []model.Trade
	err := q.Find(&out).Error
	return out, err
}

func (r *TradeRepository) CountByStrategy(ctx context.Context, strategyID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Trade{}).Where("strategy_id = ?", strategyID).Count(&n).Error
	return n, err
}
