package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/config"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

type GORMStore struct {
	db *gorm.DB
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM() (*GORMStore, error) {
	getEnv, err := config.Get()
	if err != nil {
		return nil, err
	}

	// Build DSN (Data Source Name)
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		getEnv.DB_HOST,
		getEnv.DB_USER_NAME,
		getEnv.DB_PASSWORD,
		getEnv.DB_NAME,
		getEnv.DB_PORT,
		getEnv.DB_SSL_MODE,
	)

	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if getEnv.GO_ENV == "production" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	// Open GORM connection
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: false,
		PrepareStmt:            true, // Prepare statements for better performance
	})
	if err != nil {
		log.Println("Unable to connect to PostgreSQL with GORM:", err)
		return nil, err
	}

	// Get underlying *sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Successfully connected to PostgreSQL Database with GORM.")

	return &GORMStore{db: db}, nil
}

// Init runs the AutoMigrate to create/update tables
func (s *GORMStore) Init() error {
	log.Println("Running GORM AutoMigrate for all models...")

	err := s.db.AutoMigrate(
		// Scheduling models
		&model.CronJobDefinition{},
		&model.JobExecutionRecord{},

		// Pipeline models
		&model.PipelineDefinition{},
		&model.BlogDraft{},

		// Automation rule models
		&model.AutomationRule{},
		&model.RuleExecutionLog{},

		// Application settings
		&model.AppSetting{},
	)
	if err != nil {
		return err
	}

	log.Println("GORM AutoMigrate completed successfully.")
	return nil
}

// Close closes the underlying database connection
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck pings the database
func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// GetDB returns the underlying *gorm.DB
func (s *GORMStore) GetDB() interface{} {
	return s.db
}

// --- Job definitions ---

func (s *GORMStore) CreateJob(job *model.CronJobDefinition) error {
	return s.db.Create(job).Error
}

func (s *GORMStore) UpdateJob(job *model.CronJobDefinition) error {
	return s.db.Save(job).Error
}

func (s *GORMStore) GetJob(id uint) (*model.CronJobDefinition, error) {
	var job model.CronJobDefinition
	if err := s.db.First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *GORMStore) ListJobs() ([]model.CronJobDefinition, error) {
	var jobs []model.CronJobDefinition
	err := s.db.Order("id ASC").Find(&jobs).Error
	return jobs, err
}

// ListDueJobs returns enabled jobs whose next run time has been reached
func (s *GORMStore) ListDueJobs(now time.Time) ([]model.CronJobDefinition, error) {
	var jobs []model.CronJobDefinition
	err := s.db.Where("enabled = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", true, now).
		Order("next_run_at ASC").
		Find(&jobs).Error
	return jobs, err
}

func (s *GORMStore) SetJobRunTimes(id uint, lastRun time.Time, nextRun *time.Time) error {
	return s.db.Model(&model.CronJobDefinition{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_run_at": lastRun,
			"next_run_at": nextRun,
		}).Error
}

func (s *GORMStore) SetJobNextRun(id uint, nextRun *time.Time) error {
	return s.db.Model(&model.CronJobDefinition{}).
		Where("id = ?", id).
		Update("next_run_at", nextRun).Error
}

// --- Job execution records ---

func (s *GORMStore) CreateExecutionRecord(rec *model.JobExecutionRecord) error {
	return s.db.Create(rec).Error
}

// SealExecutionRecord persists the terminal state of a record
func (s *GORMStore) SealExecutionRecord(rec *model.JobExecutionRecord) error {
	return s.db.Model(rec).Updates(map[string]interface{}{
		"status":        rec.Status,
		"finished_at":   rec.FinishedAt,
		"duration_ms":   rec.DurationMs,
		"error_message": rec.ErrorMessage,
	}).Error
}

func (s *GORMStore) LatestExecutionRecord(jobID uint) (*model.JobExecutionRecord, error) {
	var rec model.JobExecutionRecord
	err := s.db.Where("job_id = ?", jobID).
		Order("started_at DESC, id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *GORMStore) HasRunningExecution(jobID uint) (bool, error) {
	var count int64
	err := s.db.Model(&model.JobExecutionRecord{}).
		Where("job_id = ? AND status = ?", jobID, model.ExecutionStatusRunning).
		Count(&count).Error
	return count > 0, err
}

func (s *GORMStore) ListExecutionRecords(jobID uint, limit int) ([]model.JobExecutionRecord, error) {
	var records []model.JobExecutionRecord
	q := s.db.Where("job_id = ?", jobID).Order("started_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}

func (s *GORMStore) DeleteExecutionRecordsBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ? AND status <> ?", cutoff, model.ExecutionStatusRunning).
		Delete(&model.JobExecutionRecord{})
	return result.RowsAffected, result.Error
}

// --- Pipelines and drafts ---

func (s *GORMStore) CreatePipeline(p *model.PipelineDefinition) error {
	return s.db.Create(p).Error
}

func (s *GORMStore) GetPipeline(id uint) (*model.PipelineDefinition, error) {
	var p model.PipelineDefinition
	if err := s.db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *GORMStore) ListPipelines() ([]model.PipelineDefinition, error) {
	var pipelines []model.PipelineDefinition
	err := s.db.Order("id ASC").Find(&pipelines).Error
	return pipelines, err
}

func (s *GORMStore) CreateDraft(d *model.BlogDraft) error {
	return s.db.Create(d).Error
}

// --- Automation rules ---

func (s *GORMStore) CreateRule(r *model.AutomationRule) error {
	return s.db.Create(r).Error
}

func (s *GORMStore) UpdateRule(r *model.AutomationRule) error {
	return s.db.Save(r).Error
}

func (s *GORMStore) GetRule(id uint) (*model.AutomationRule, error) {
	var r model.AutomationRule
	if err := s.db.First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *GORMStore) ListRules() ([]model.AutomationRule, error) {
	var rules []model.AutomationRule
	err := s.db.Order("id ASC").Find(&rules).Error
	return rules, err
}

func (s *GORMStore) ListRulesByTrigger(triggerType string) ([]model.AutomationRule, error) {
	var rules []model.AutomationRule
	err := s.db.Where("enabled = ? AND trigger_type = ?", true, triggerType).
		Order("id ASC").
		Find(&rules).Error
	return rules, err
}

func (s *GORMStore) RecordRuleRun(ruleID uint, runCount int64, successRate float64, lastRun time.Time) error {
	return s.db.Model(&model.AutomationRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]interface{}{
			"run_count":    runCount,
			"success_rate": successRate,
			"last_run":     lastRun,
		}).Error
}

func (s *GORMStore) CreateRuleLog(entry *model.RuleExecutionLog) error {
	return s.db.Create(entry).Error
}

func (s *GORMStore) ListRuleLogs(ruleID uint, limit int) ([]model.RuleExecutionLog, error) {
	var logs []model.RuleExecutionLog
	q := s.db.Where("rule_id = ?", ruleID).Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&logs).Error
	return logs, err
}

func (s *GORMStore) DeleteRuleLogsBefore(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&model.RuleExecutionLog{})
	return result.RowsAffected, result.Error
}

// --- Application settings ---

func (s *GORMStore) UpsertSetting(setting *model.AppSetting) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "type", "description", "category", "updated_at"}),
	}).Create(setting).Error
}
