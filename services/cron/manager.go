package cron

import (
	"encoding/json"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/database"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/services/cronexpr"
)

// Retention window for execution records and rule logs
const retentionDays = 90

// StatsSettingKey is the app_settings key holding the aggregated
// automation statistics written by the hourly maintenance job.
const StatsSettingKey = "automation_stats"

// CronManager runs the housekeeping jobs of the automation system:
// retention cleanup, next-run backfill and statistics aggregation. It is
// separate from the scheduler, which only runs operator-defined jobs.
type CronManager struct {
	cron  *cron.Cron
	store database.Storage
}

// NewCronManager creates a new cron manager
func NewCronManager(store database.Storage) *CronManager {
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:  c,
		store: store,
	}
}

// Start registers and starts all maintenance jobs
func (m *CronManager) Start() error {
	log.Println("Starting maintenance cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Maintenance cron jobs started successfully")
	return nil
}

// Stop stops all maintenance jobs and waits for running ones to finish
func (m *CronManager) Stop() {
	log.Println("Stopping maintenance cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Maintenance cron jobs stopped")
}

// registerJobs registers all maintenance jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every hour: aggregate automation statistics
	_, err := m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("aggregate_statistics")
		m.AggregateStatistics()
	})
	if err != nil {
		return err
	}

	// 2. Daily at 2 AM: cleanup old execution records and rule logs
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("cleanup_old_data")
		m.CleanupOldData()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 3 AM: backfill missing next run times
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("backfill_next_runs")
		m.BackfillNextRuns()
	})
	if err != nil {
		return err
	}

	log.Println("All maintenance jobs registered successfully")
	return nil
}

// logJobStart logs the start of a maintenance job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))
}

// CleanupOldData deletes execution records and rule logs older than the
// retention window.
func (m *CronManager) CleanupOldData() {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	records, err := m.store.DeleteExecutionRecordsBefore(cutoff)
	if err != nil {
		log.Printf("[CRON] Error in job: cleanup_old_data - %v", err)
		return
	}

	logs, err := m.store.DeleteRuleLogsBefore(cutoff)
	if err != nil {
		log.Printf("[CRON] Error in job: cleanup_old_data - %v", err)
		return
	}

	log.Printf("[CRON] Completed job: cleanup_old_data - deleted %d execution record(s), %d rule log(s)", records, logs)
}

// BackfillNextRuns computes next_run_at for enabled jobs that lost it, e.g.
// after their cron expression produced no occurrence for a while.
func (m *CronManager) BackfillNextRuns() {
	jobs, err := m.store.ListJobs()
	if err != nil {
		log.Printf("[CRON] Error in job: backfill_next_runs - %v", err)
		return
	}

	now := time.Now()
	filled := 0
	for i := range jobs {
		job := &jobs[i]
		if !job.Enabled || job.NextRunAt != nil {
			continue
		}

		next, err := cronexpr.NextOccurrence(job.CronExpression, now)
		if err != nil {
			log.Printf("[CRON] Job %d (%s) has no upcoming occurrence: %v", job.ID, job.Name, err)
			continue
		}
		if err := m.store.SetJobNextRun(job.ID, &next); err != nil {
			log.Printf("[CRON] Failed to backfill next run for job %d: %v", job.ID, err)
			continue
		}
		filled++
	}

	log.Printf("[CRON] Completed job: backfill_next_runs - backfilled %d job(s)", filled)
}

// AggregateStatistics writes a snapshot of job and rule counters into
// app_settings so dashboards read one row instead of scanning tables.
func (m *CronManager) AggregateStatistics() {
	jobs, err := m.store.ListJobs()
	if err != nil {
		log.Printf("[CRON] Error in job: aggregate_statistics - %v", err)
		return
	}
	rules, err := m.store.ListRules()
	if err != nil {
		log.Printf("[CRON] Error in job: aggregate_statistics - %v", err)
		return
	}

	enabledJobs := 0
	for _, j := range jobs {
		if j.Enabled {
			enabledJobs++
		}
	}

	enabledRules := 0
	var totalRuleRuns int64
	for _, r := range rules {
		if r.Enabled {
			enabledRules++
		}
		totalRuleRuns += r.RunCount
	}

	stats := map[string]any{
		"jobs":            len(jobs),
		"enabled_jobs":    enabledJobs,
		"rules":           len(rules),
		"enabled_rules":   enabledRules,
		"total_rule_runs": totalRuleRuns,
		"generated_at":    time.Now().Format(time.RFC3339),
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		log.Printf("[CRON] Error in job: aggregate_statistics - %v", err)
		return
	}

	setting := &model.AppSetting{
		Key:         StatsSettingKey,
		Value:       string(raw),
		Type:        "json",
		Description: "Aggregated automation statistics, refreshed hourly",
		Category:    "automation",
	}
	if err := m.store.UpsertSetting(setting); err != nil {
		log.Printf("[CRON] Error in job: aggregate_statistics - %v", err)
		return
	}

	log.Printf("[CRON] Completed job: aggregate_statistics - %d job(s), %d rule(s)", len(jobs), len(rules))
}
