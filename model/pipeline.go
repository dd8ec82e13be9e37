package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PipelineStatus is the aggregate status of a pipeline execution
type PipelineStatus string

const (
	PipelineStatusIdle   PipelineStatus = "idle"
	PipelineStatusActive PipelineStatus = "active"
	PipelineStatusPaused PipelineStatus = "paused"
	PipelineStatusError  PipelineStatus = "error"
)

// StageStatus is the status of a single pipeline stage
type StageStatus string

const (
	StageStatusIdle      StageStatus = "idle"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// StageDefinition describes one ordered stage of a pipeline. The stage's
// ActionName is resolved through the action registry at run time.
type StageDefinition struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ActionName         string `json:"action_name"`
	ExpectedDurationMs int64  `json:"expected_duration_ms"`
}

// PipelineConfig is the operator-facing configuration consumed on pipeline
// start. Changes take effect on the next start, never on an in-flight run.
type PipelineConfig struct {
	BatchSize        int    `json:"batch_size"`
	QualityThreshold int    `json:"quality_threshold"` // 0-100
	AutoPublish      bool   `json:"auto_publish"`
	TargetCategory   string `json:"target_category"`
}

// PipelineDefinition describes an ordered content-production pipeline,
// e.g. trend analysis -> content generation -> quality check -> SEO -> publish.
type PipelineDefinition struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"type:varchar(100);not null" json:"name"`
	Type             string         `gorm:"type:varchar(50);not null" json:"type"`
	Stages           datatypes.JSON `gorm:"type:jsonb;not null" json:"stages"` // []StageDefinition
	BatchSize        int            `gorm:"not null;default:5" json:"batch_size"`
	QualityThreshold int            `gorm:"not null;default:70" json:"quality_threshold"`
	AutoPublish      bool           `gorm:"not null;default:false" json:"auto_publish"`
	TargetCategory   string         `gorm:"type:varchar(100)" json:"target_category"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for PipelineDefinition
func (PipelineDefinition) TableName() string {
	return "pipeline_definitions"
}

// StageState is the live status of one stage within an execution
type StageState struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Status   StageStatus `json:"status"`
	Progress int         `json:"progress"` // 0-100
}

// PipelineExecutionState is the live state of a pipeline. While the status
// is active exactly one stage is running, every stage before it is
// completed and every stage after it is idle.
type PipelineExecutionState struct {
	ID         string         `json:"id"`
	PipelineID uint           `json:"pipeline_id"`
	Status     PipelineStatus `json:"status"`
	Stages     []StageState   `json:"stages"`
	Throughput float64        `json:"throughput"` // items per hour, last completed run
	Efficiency float64        `json:"efficiency"` // completed stages / total * 100, last run
	LastRunAt  *time.Time     `json:"last_run_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Redis key patterns for pipeline execution state snapshots
const (
	// RedisKeyPipelineState stores the execution state as JSON for UI polling
	// Usage: fmt.Sprintf(RedisKeyPipelineState, pipelineID)
	RedisKeyPipelineState = "pipeline:state:%d"

	// RedisKeyJobLock serializes execution per job across instances
	// Usage: fmt.Sprintf(RedisKeyJobLock, jobID)
	RedisKeyJobLock = "job:lock:%d"
)
