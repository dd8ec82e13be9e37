package model

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CronJobDefinition is an operator-defined scheduled job. The scheduler owns
// LastRunAt/NextRunAt; everything else is edited through the admin API.
// Jobs referenced by execution history are disabled, never deleted.
type CronJobDefinition struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"type:varchar(100);not null" json:"name"`
	CronExpression string         `gorm:"type:varchar(100);not null" json:"cron_expression"`
	ActionName     string         `gorm:"type:varchar(100);not null" json:"action_name"`
	Payload        datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	RetryCount     int            `gorm:"not null;default:0" json:"retry_count"`
	TimeoutSeconds int            `gorm:"not null;default:300" json:"timeout_seconds"`
	Enabled        bool           `gorm:"not null;default:true;index" json:"enabled"`
	Dependencies   pq.Int64Array  `gorm:"type:bigint[]" json:"dependencies,omitempty"`
	Tags           pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time     `gorm:"index" json:"next_run_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for CronJobDefinition
func (CronJobDefinition) TableName() string {
	return "cron_job_definitions"
}
