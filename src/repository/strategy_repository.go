package repository

import (
	"context"
	"errors"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalrelay/src/database"
	"signalrelay/src/model"
)

var (
	ErrStrategyNotFound     = errors.New("repository: strategy not found")
	ErrStrategyNameConflict = errors.New("repository: strategy name already exists")
)

// updatableStrategyColumns are written by Update. Status has its own path through SetStatus.
var updatableStrategyColumns = []string{
	"name", "risk_percentage", "account_id", "password",
	"server", "directory", "websocket_url", "commission", "updated_at",
}

type StrategyRepository struct {
	db *gorm.DB
}

func NewStrategyRepository() *StrategyRepository {
	return &StrategyRepository{
		db: database.MainDB,
	}
}

// WithDB returns a copy bound to db.
func (r *StrategyRepository) WithDB(db *gorm.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

func (r *StrategyRepository) Create(ctx context.Context, s *model.Strategy) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return translateStrategyError(err)
	}
	logger.WithFields(map[string]interface{}{
		"repo":        "strategy",
		"op":          "create",
		"strategy_id": s.ID,
		"strategy":    s.Name,
	}).Info("Strategy created")
	return nil
}

// Update writes the editable fields of s. Status is left alone.
func (r *StrategyRepository) Update(ctx context.Context, s *model.Strategy) error {
	res := r.db.WithContext(ctx).
		Model(s).
		Select(updatableStrategyColumns).
		Updates(s)
	if res.Error != nil {
		return translateStrategyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStrategyNotFound
	}
	return nil
}

// SetStatus stores Active or Inactive for the strategy id.
func (r *StrategyRepository) SetStatus(ctx context.Context, id uint, status string) error {
	res := r.db.WithContext(ctx).
		Model(&model.Strategy{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStrategyNotFound
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "strategy",
		"op":          "set_status",
		"strategy_id": id,
		"status":      status,
	}).Debug("Strategy status stored")
	return nil
}

// Delete removes the strategy and its trades in one transaction.
func (r *StrategyRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("strategy_id = ?", id).Delete(&model.Trade{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Strategy{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStrategyNotFound
		}
		return nil
	})
}

func (r *StrategyRepository) FindByID(ctx context.Context, id uint) (*model.Strategy, error) {
	var s model.Strategy
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStrategyNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *StrategyRepository) FindByName(ctx context.Context, name string) (*model.Strategy, error) {
	var s model.Strategy
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStrategyNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *StrategyRepository) List(ctx context.Context) ([]model.Strategy, error) {
	var out []model.Strategy
	err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// ListActive returns the strategies that should have a running client.
func (r *StrategyRepository) ListActive(ctx context.Context) ([]model.Strategy, error) {
	var out []model.Strategy
	err := r.db.WithContext(ctx).
		Where("status = ?", model.StrategyStatusActive).
		Order("id ASC").
		Find(&out).Error
	return out, err
}

func translateStrategyError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
		return ErrStrategyNameConflict
	}
	return err
}

// isUniqueViolation catches drivers that do not translate constraint errors.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
