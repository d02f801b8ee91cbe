package model

import "time"

// Alarm is the persisted row for one monitoring point. Status mirrors
// whether the alarm has an open activation and is kept in step with it
// inside the toggle transaction.
type Alarm struct {
	ID                   string    `gorm:"primaryKey;size:64"`
	Description          string    `gorm:"not null;default:''"`
	Status               int       `gorm:"not null;default:0"`
	LastStatusChangeTime time.Time `gorm:"not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time

	// Associations
	Activations []Activation `gorm:"foreignKey:AlarmID;constraint:OnDelete:CASCADE"`
}

// Activation is one activation period. DeactivatedAt is NULL while open.
type Activation struct {
	ID            int64      `gorm:"primaryKey;autoIncrement"`
	AlarmID       string     `gorm:"size:64;not null;index:idx_alarm_activations_alarm_start,priority:1"`
	ActivatedAt   time.Time  `gorm:"not null;index:idx_alarm_activations_alarm_start,priority:2"`
	DeactivatedAt *time.Time `gorm:"check:chk_alarm_activations_order,deactivated_at IS NULL OR deactivated_at >= activated_at"`
}

// TableName overrides the default pluralised name.
func (Activation) TableName() string {
	return "alarm_activations"
}
