package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkUnitStatus represents the execution state of a dispatched task
type WorkUnitStatus string

const (
	WorkUnitStatusPending   WorkUnitStatus = "pending"
	WorkUnitStatusRunning   WorkUnitStatus = "running"
	WorkUnitStatusSucceeded WorkUnitStatus = "succeeded"
	WorkUnitStatusFailed    WorkUnitStatus = "failed"
	WorkUnitStatusSkipped   WorkUnitStatus = "skipped" // Same identity already in flight
)

// WorkUnit is the persisted trace of one dispatched task
type WorkUnit struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID        uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	TaskType    string         `gorm:"size:50;not null;index" json:"task_type"`
	IdentityKey string         `gorm:"size:255;not null;index" json:"identity_key"`
	Payload     JSONMap        `gorm:"type:jsonb" json:"payload"`
	Status      WorkUnitStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts int            `gorm:"not null" json:"max_attempts"`
	LastError   *string        `gorm:"type:text" json:"last_error,omitempty"`
	Result      JSONMap        `gorm:"type:jsonb" json:"result,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (WorkUnit) TableName() string {
	return "work_units"
}

// BeforeCreate ensures UUID is set
func (w *WorkUnit) BeforeCreate(tx *gorm.DB) error {
	if w.UUID == uuid.Nil {
		w.UUID = uuid.New()
	}
	return nil
}

// IsFinished returns true once the unit can no longer change state
func (w *WorkUnit) IsFinished() bool {
	switch w.Status {
	case WorkUnitStatusSucceeded, WorkUnitStatusFailed, WorkUnitStatusSkipped:
		return true
	}
	return false
}

// WorkUnitFilter represents filter criteria for work unit queries
type WorkUnitFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	TaskType      *string         `json:"task_type,omitempty"`
	IdentityKey   *string         `json:"identity_key,omitempty"`
	Status        *WorkUnitStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
