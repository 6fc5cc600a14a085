package model

import (
	"time"

	"gorm.io/datatypes"
)

// Journal actions.
const (
	ActionVEGrant  = "ve.grant"
	ActionVEAdjust = "ve.adjust"
	ActionPurchase = "store.buy"
	ActionEquip    = "store.equip"
	ActionRegister = "account.register"
)

// AuditLog is one Vent Energy journal entry: grants, purchases, equips and
// admin adjustments. Entries are written asynchronously and may lag.
type AuditLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID   string         `gorm:"index:idx_audit_trace;size:36;not null" json:"traceId"`
	UserID    *string        `gorm:"index:idx_audit_user;size:36" json:"userId"`
	Action    string         `gorm:"size:64;not null" json:"action"`
	Amount    int64          `json:"amount"`
	Balance   *int64         `json:"balance"`
	Detail    datatypes.JSON `json:"detail"`
	IP        string         `gorm:"size:45" json:"ip"`
	CreatedAt time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"createdAt"`
}
