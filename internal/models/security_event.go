package models

import (
	"time"
)

// SecurityEvent stores a rejection or block issued by the admission-control
// engine (rate limiter, WAF, validator, CSRF) so it can be audited and
// surfaced in the UI.
type SecurityEvent struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UUID       string    `json:"uuid" gorm:"uniqueIndex"`
	Source     string    `json:"source"`     // e.g., ratelimit, penaltybox, waf, validator, csrf
	Action     string    `json:"action"`     // allow, block, reject
	Identifier string    `json:"identifier"` // hashed client identifier
	Context    string    `json:"context"`    // request context or endpoint class
	Threats    string    `json:"threats" gorm:"type:text"` // comma-joined threat names
	RiskScore  int       `json:"risk_score"`
	Details    string    `json:"details" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}
