package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Well-known trigger types dispatched into the rule engine
const (
	TriggerContentCreated  = "content_created"
	TriggerScheduleReached = "schedule_reached"
)

// AutomationRule binds a trigger to an ordered list of actions. A rule fires
// when an event's type matches the trigger type and the trigger params are a
// subset of the event payload.
type AutomationRule struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Name          string         `gorm:"type:varchar(100);not null" json:"name"`
	TriggerType   string         `gorm:"type:varchar(50);not null;index" json:"trigger_type"`
	TriggerParams datatypes.JSON `gorm:"type:jsonb" json:"trigger_params,omitempty"`
	Actions       datatypes.JSON `gorm:"type:jsonb;not null" json:"actions"` // []RuleAction
	Enabled       bool           `gorm:"not null;default:true;index" json:"enabled"`
	RunCount      int64          `gorm:"not null;default:0" json:"run_count"`
	SuccessRate   float64        `gorm:"not null;default:100" json:"success_rate"` // 0-100, EWMA
	LastRun       *time.Time     `json:"last_run,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for AutomationRule
func (AutomationRule) TableName() string {
	return "automation_rules"
}

// RuleAction is one entry of a rule's ordered action list
type RuleAction struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// RuleOutcome is the overall outcome of one rule invocation
type RuleOutcome string

const (
	RuleOutcomeSuccess RuleOutcome = "success"
	RuleOutcomeFailure RuleOutcome = "failure"
)

// RuleExecutionLog records one invocation of a rule, including the
// per-action results up to the first failure.
type RuleExecutionLog struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	RuleID        uint           `gorm:"not null;index" json:"rule_id"`
	Timestamp     time.Time      `gorm:"not null" json:"timestamp"`
	Outcome       RuleOutcome    `gorm:"type:varchar(20);not null" json:"outcome"`
	ActionResults datatypes.JSON `gorm:"type:jsonb" json:"action_results,omitempty"` // []ActionResult
	CreatedAt     time.Time      `json:"created_at"`
}

// TableName specifies the table name for RuleExecutionLog
func (RuleExecutionLog) TableName() string {
	return "rule_execution_logs"
}

// ActionResult is the recorded result of a single rule action
type ActionResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
