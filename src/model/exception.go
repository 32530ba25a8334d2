package model

import "time"

const (
	ExceptionLevelWarn  = "warn"
	ExceptionLevelError = "error"
)

// Exception is an audit row for failures that must outlive the log file,
// such as an order the venue refused.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service    string `gorm:"size:100;index" json:"service"` // e.g. "signal_relay"
	Module     string `gorm:"size:100;index" json:"module"`  // e.g. "alert_processor"
	Method     string `gorm:"size:100" json:"method"`        // e.g. "SubmitOrder"
	StrategyID *uint  `gorm:"index" json:"strategy_id,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Level   string `gorm:"size:20;index" json:"level"`

	// Extra context stored as JSON (optional)
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
