package database

import (
	"sort"
	"sync"
	"time"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
)

// MemoryStore is an in-memory Storage implementation used by service tests
// and local development without PostgreSQL.
type MemoryStore struct {
	mu sync.Mutex

	nextJobID      uint
	nextRecordID   uint
	nextPipelineID uint
	nextDraftID    uint
	nextRuleID     uint
	nextLogID      uint

	jobs      map[uint]*model.CronJobDefinition
	records   map[uint]*model.JobExecutionRecord
	pipelines map[uint]*model.PipelineDefinition
	drafts    map[uint]*model.BlogDraft
	rules     map[uint]*model.AutomationRule
	ruleLogs  map[uint]*model.RuleExecutionLog
	settings  map[string]*model.AppSetting
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[uint]*model.CronJobDefinition),
		records:   make(map[uint]*model.JobExecutionRecord),
		pipelines: make(map[uint]*model.PipelineDefinition),
		drafts:    make(map[uint]*model.BlogDraft),
		rules:     make(map[uint]*model.AutomationRule),
		ruleLogs:  make(map[uint]*model.RuleExecutionLog),
		settings:  make(map[string]*model.AppSetting),
	}
}

func (s *MemoryStore) Init() error        { return nil }
func (s *MemoryStore) Close() error       { return nil }
func (s *MemoryStore) HealthCheck() error { return nil }

func (s *MemoryStore) GetDB() interface{} { return nil }

// --- Job definitions ---

func (s *MemoryStore) CreateJob(job *model.CronJobDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextJobID++
	job.ID = s.nextJobID
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *MemoryStore) UpdateJob(job *model.CronJobDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	job.UpdatedAt = time.Now()
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *MemoryStore) GetJob(id uint) (*model.CronJobDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *MemoryStore) ListJobs() ([]model.CronJobDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]model.CronJobDefinition, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs, nil
}

func (s *MemoryStore) ListDueJobs(now time.Time) ([]model.CronJobDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.CronJobDefinition
	for _, job := range s.jobs {
		if job.Enabled && job.NextRunAt != nil && !job.NextRunAt.After(now) {
			due = append(due, *job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (s *MemoryStore) SetJobRunTimes(id uint, lastRun time.Time, nextRun *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.LastRunAt = &lastRun
	job.NextRunAt = nextRun
	job.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetJobNextRun(id uint, nextRun *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.NextRunAt = nextRun
	job.UpdatedAt = time.Now()
	return nil
}

// --- Job execution records ---

func (s *MemoryStore) CreateExecutionRecord(rec *model.JobExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRecordID++
	rec.ID = s.nextRecordID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	clone := *rec
	s.records[rec.ID] = &clone
	return nil
}

func (s *MemoryStore) SealExecutionRecord(rec *model.JobExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Status = rec.Status
	stored.FinishedAt = rec.FinishedAt
	stored.DurationMs = rec.DurationMs
	stored.ErrorMessage = rec.ErrorMessage
	stored.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) LatestExecutionRecord(jobID uint) (*model.JobExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *model.JobExecutionRecord
	for _, rec := range s.records {
		if rec.JobID != jobID {
			continue
		}
		if latest == nil || rec.StartedAt.After(latest.StartedAt) ||
			(rec.StartedAt.Equal(latest.StartedAt) && rec.ID > latest.ID) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	clone := *latest
	return &clone, nil
}

func (s *MemoryStore) HasRunningExecution(jobID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		if rec.JobID == jobID && rec.Status == model.ExecutionStatusRunning {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListExecutionRecords(jobID uint, limit int) ([]model.JobExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []model.JobExecutionRecord
	for _, rec := range s.records {
		if rec.JobID == jobID {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *MemoryStore) DeleteExecutionRecordsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, rec := range s.records {
		if rec.CreatedAt.Before(cutoff) && rec.Status != model.ExecutionStatusRunning {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- Pipelines and drafts ---

func (s *MemoryStore) CreatePipeline(p *model.PipelineDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPipelineID++
	p.ID = s.nextPipelineID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	clone := *p
	s.pipelines[p.ID] = &clone
	return nil
}

func (s *MemoryStore) GetPipeline(id uint) (*model.PipelineDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pipelines[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *MemoryStore) ListPipelines() ([]model.PipelineDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pipelines := make([]model.PipelineDefinition, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		pipelines = append(pipelines, *p)
	}
	sort.Slice(pipelines, func(i, j int) bool { return pipelines[i].ID < pipelines[j].ID })
	return pipelines, nil
}

func (s *MemoryStore) CreateDraft(d *model.BlogDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDraftID++
	d.ID = s.nextDraftID
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	clone := *d
	s.drafts[d.ID] = &clone
	return nil
}

// Drafts returns all stored drafts, ordered by id
func (s *MemoryStore) Drafts() []model.BlogDraft {
	s.mu.Lock()
	defer s.mu.Unlock()

	drafts := make([]model.BlogDraft, 0, len(s.drafts))
	for _, d := range s.drafts {
		drafts = append(drafts, *d)
	}
	sort.Slice(drafts, func(i, j int) bool { return drafts[i].ID < drafts[j].ID })
	return drafts
}

// --- Automation rules ---

func (s *MemoryStore) CreateRule(r *model.AutomationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRuleID++
	r.ID = s.nextRuleID
	if r.SuccessRate == 0 && r.RunCount == 0 {
		r.SuccessRate = 100 // seeded for the first run
	}
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	clone := *r
	s.rules[r.ID] = &clone
	return nil
}

func (s *MemoryStore) UpdateRule(r *model.AutomationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = time.Now()
	clone := *r
	s.rules[r.ID] = &clone
	return nil
}

func (s *MemoryStore) GetRule(id uint) (*model.AutomationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *MemoryStore) ListRules() ([]model.AutomationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules := make([]model.AutomationRule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, *r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (s *MemoryStore) ListRulesByTrigger(triggerType string) ([]model.AutomationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rules []model.AutomationRule
	for _, r := range s.rules {
		if r.Enabled && r.TriggerType == triggerType {
			rules = append(rules, *r)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (s *MemoryStore) RecordRuleRun(ruleID uint, runCount int64, successRate float64, lastRun time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[ruleID]
	if !ok {
		return ErrNotFound
	}
	r.RunCount = runCount
	r.SuccessRate = successRate
	r.LastRun = &lastRun
	r.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) CreateRuleLog(entry *model.RuleExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	entry.ID = s.nextLogID
	entry.CreatedAt = time.Now()
	clone := *entry
	s.ruleLogs[entry.ID] = &clone
	return nil
}

func (s *MemoryStore) ListRuleLogs(ruleID uint, limit int) ([]model.RuleExecutionLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var logs []model.RuleExecutionLog
	for _, entry := range s.ruleLogs {
		if entry.RuleID == ruleID {
			logs = append(logs, *entry)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].Timestamp.Equal(logs[j].Timestamp) {
			return logs[i].ID > logs[j].ID
		}
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *MemoryStore) DeleteRuleLogsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, entry := range s.ruleLogs {
		if entry.CreatedAt.Before(cutoff) {
			delete(s.ruleLogs, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- Application settings ---

func (s *MemoryStore) UpsertSetting(setting *model.AppSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.settings[setting.Key]; ok {
		existing.Value = setting.Value
		existing.Type = setting.Type
		existing.Description = setting.Description
		existing.Category = setting.Category
		existing.UpdatedAt = time.Now()
		return nil
	}
	setting.CreatedAt = time.Now()
	setting.UpdatedAt = setting.CreatedAt
	clone := *setting
	s.settings[setting.Key] = &clone
	return nil
}
