package database

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/Darkhey/mien-tuun-garden-bloom-sub001/model"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// RunSeeds runs all seed functions
func RunSeeds(db *gorm.DB) error {
	return NewSeeder(db).SeedAll()
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	if err := s.SeedContentPipeline(); err != nil {
		return fmt.Errorf("failed to seed content pipeline: %w", err)
	}

	if err := s.SeedCronJobs(); err != nil {
		return fmt.Errorf("failed to seed cron jobs: %w", err)
	}

	if err := s.SeedAutomationRules(); err != nil {
		return fmt.Errorf("failed to seed automation rules: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedContentPipeline creates the default five-stage article pipeline
func (s *Seeder) SeedContentPipeline() error {
	var count int64
	if err := s.db.Model(&model.PipelineDefinition{}).Where("name = ?", "Garten-Artikel").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️  Content pipeline already exists, skipping...")
		return nil
	}

	stages := []model.StageDefinition{
		{ID: "trends", Name: "Trend-Analyse", ActionName: "trend_analysis", ExpectedDurationMs: 5000},
		{ID: "generate", Name: "Artikel generieren", ActionName: "generate_content", ExpectedDurationMs: 60000},
		{ID: "quality", Name: "Qualitätsprüfung", ActionName: "quality_check", ExpectedDurationMs: 2000},
		{ID: "seo", Name: "SEO-Optimierung", ActionName: "seo_optimize", ExpectedDurationMs: 3000},
		{ID: "publish", Name: "Veröffentlichen", ActionName: "publish", ExpectedDurationMs: 2000},
	}
	rawStages, err := json.Marshal(stages)
	if err != nil {
		return err
	}

	pipeline := &model.PipelineDefinition{
		Name:             "Garten-Artikel",
		Type:             "content",
		Stages:           rawStages,
		BatchSize:        5,
		QualityThreshold: 70,
		AutoPublish:      false,
		TargetCategory:   "garten",
	}
	if err := s.db.Create(pipeline).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded content pipeline %d (%s)", pipeline.ID, pipeline.Name)
	return nil
}

// SeedCronJobs creates the daily pipeline trigger job
func (s *Seeder) SeedCronJobs() error {
	var count int64
	if err := s.db.Model(&model.CronJobDefinition{}).Where("name = ?", "daily-content-run").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️  Cron jobs already exist, skipping...")
		return nil
	}

	var pipeline model.PipelineDefinition
	if err := s.db.Where("name = ?", "Garten-Artikel").First(&pipeline).Error; err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{"pipeline_id": pipeline.ID})
	if err != nil {
		return err
	}

	next := time.Now().Add(time.Minute).Truncate(time.Minute)
	job := &model.CronJobDefinition{
		Name:           "daily-content-run",
		CronExpression: "0 6 * * *",
		ActionName:     "run_pipeline",
		Payload:        payload,
		RetryCount:     2,
		TimeoutSeconds: 1800,
		Enabled:        true,
		Tags:           []string{"content", "pipeline"},
		NextRunAt:      &next,
	}
	if err := s.db.Create(job).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded cron job %d (%s)", job.ID, job.Name)
	return nil
}

// SeedAutomationRules creates the published-content notification rule
func (s *Seeder) SeedAutomationRules() error {
	var count int64
	if err := s.db.Model(&model.AutomationRule{}).Where("name = ?", "notify-on-publish").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("⏭️  Automation rules already exist, skipping...")
		return nil
	}

	actions, err := json.Marshal([]model.RuleAction{
		{Name: "log_event", Params: map[string]any{"channel": "editorial"}},
	})
	if err != nil {
		return err
	}
	params, err := json.Marshal(map[string]any{"status": "published"})
	if err != nil {
		return err
	}

	rule := &model.AutomationRule{
		Name:          "notify-on-publish",
		TriggerType:   model.TriggerContentCreated,
		TriggerParams: params,
		Actions:       actions,
		Enabled:       true,
		SuccessRate:   100,
	}
	if err := s.db.Create(rule).Error; err != nil {
		return err
	}

	log.Printf("✅ Seeded automation rule %d (%s)", rule.ID, rule.Name)
	return nil
}
