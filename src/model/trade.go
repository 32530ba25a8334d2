package model

import "time"

const (
	TradeActionBuy  = "BUY"
	TradeActionSell = "SELL"
)

// Trade is written once per order the venue reports as done. It is never updated.
type Trade struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	StrategyID   uint      `gorm:"not null;index:idx_trades_strategy_timestamp,priority:1" json:"strategy_id"`
	VenueOrderID uint64    `gorm:"not null;column:venue_order_id" json:"venue_order_id"`
	Symbol       string    `gorm:"size:50;not null" json:"symbol"`
	Action       string    `gorm:"size:10;not null" json:"action"`
	Volume       float64   `gorm:"not null" json:"volume"`
	Price        float64   `gorm:"not null" json:"price"`
	StopLoss     float64   `gorm:"column:sl" json:"sl"`
	TakeProfit   float64   `gorm:"column:tp" json:"tp"`
	Profit       float64   `gorm:"not null;default:0" json:"profit"`
	Timestamp    time.Time `gorm:"not null;index:idx_trades_strategy_timestamp,priority:2" json:"timestamp"`
}

func (Trade) TableName() string {
	return "trades"
}
