package database

import (
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
)

// Storage defines the interface that all database implementations must satisfy.
// The scheduler, executor, orchestrator and rule engine only ever talk to
// this interface so their invariants stay enforceable independent of the
// backing store.
type Storage interface {
	// Lifecycle methods
	Init() error
	Close() error
	HealthCheck() error

	// GORM DB access
	GetDB() interface{} // Returns *gorm.DB for GORMStore

	// Job definitions
	CreateJob(job *model.CronJobDefinition) error
	UpdateJob(job *model.CronJobDefinition) error
	GetJob(id uint) (*model.CronJobDefinition, error)
	ListJobs() ([]model.CronJobDefinition, error)
	ListDueJobs(now time.Time) ([]model.CronJobDefinition, error)
	SetJobRunTimes(id uint, lastRun time.Time, nextRun *time.Time) error
	SetJobNextRun(id uint, nextRun *time.Time) error

	// Job execution records
	CreateExecutionRecord(rec *model.JobExecutionRecord) error
	SealExecutionRecord(rec *model.JobExecutionRecord) error
	LatestExecutionRecord(jobID uint) (*model.JobExecutionRecord, error)
	HasRunningExecution(jobID uint) (bool, error)
	ListExecutionRecords(jobID uint, limit int) ([]model.JobExecutionRecord, error)
	DeleteExecutionRecordsBefore(cutoff time.Time) (int64, error)

	// Pipelines and drafts
	CreatePipeline(p *model.PipelineDefinition) error
	GetPipeline(id uint) (*model.PipelineDefinition, error)
	ListPipelines() ([]model.PipelineDefinition, error)
	CreateDraft(d *model.BlogDraft) error

	// Automation rules
	CreateRule(r *model.AutomationRule) error
	UpdateRule(r *model.AutomationRule) error
	GetRule(id uint) (*model.AutomationRule, error)
	ListRules() ([]model.AutomationRule, error)
	ListRulesByTrigger(triggerType string) ([]model.AutomationRule, error)
	RecordRuleRun(ruleID uint, runCount int64, successRate float64, lastRun time.Time) error
	CreateRuleLog(entry *model.RuleExecutionLog) error
	ListRuleLogs(ruleID uint, limit int) ([]model.RuleExecutionLog, error)
	DeleteRuleLogsBefore(cutoff time.Time) (int64, error)

	// Application settings
	UpsertSetting(setting *model.AppSetting) error
}
