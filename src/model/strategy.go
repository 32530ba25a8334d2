package model

import "time"

const (
	StrategyStatusInactive = "Inactive"
	StrategyStatusActive   = "Active"
)

// Strategy binds one alert stream to one venue account.
type Strategy struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	Name           string  `gorm:"size:150;not null;uniqueIndex:ux_strategies_name" json:"name"`
	RiskPercentage float64 `gorm:"not null" json:"risk_percentage"`
	AccountID      string  `gorm:"size:50;not null;column:account_id" json:"account_id"`
	// Password holds the encrypted venue password, see security.EncryptString.
	Password     string    `gorm:"type:text;not null" json:"-"`
	Server       string    `gorm:"size:150;not null" json:"server"`
	Directory    string    `gorm:"size:255;not null" json:"directory"`
	WebsocketURL string    `gorm:"size:255;not null;column:websocket_url" json:"websocket_url"`
	Commission   float64   `gorm:"not null;default:0" json:"commission"`
	Status       string    `gorm:"size:20;not null;default:Inactive;index" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Trades []Trade `gorm:"foreignKey:StrategyID;constraint:OnDelete:CASCADE" json:"trades,omitempty"`
}

func (Strategy) TableName() string {
	return "strategies"
}

// IsActive reports whether the strategy is expected to have a running stream client.
func (s *Strategy) IsActive() bool {
	return s != nil && s.Status == StrategyStatusActive
}
