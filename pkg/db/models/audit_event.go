package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is an append-only record of an administrative action.
type AuditEvent struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ActorID   int64     `gorm:"column:actor_id;not null"`
	Action    string    `gorm:"column:action;not null"`
	Detail    string    `gorm:"column:detail;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
