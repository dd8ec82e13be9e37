package model

import (
	"time"

	"gorm.io/gorm"
)

// DraftStatus is the publication status of a generated article
type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusPublished DraftStatus = "published"
)

// BlogDraft is a generated article produced by the content pipeline. The
// publish stage sets Status from the quality score and the pipeline's
// auto-publish configuration; everything below the threshold stays a draft
// for manual review.
type BlogDraft struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"type:varchar(255);not null" json:"title"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	Category     string         `gorm:"type:varchar(100);index" json:"category"`
	Status       DraftStatus    `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	WordCount    int            `json:"word_count"`
	QualityScore float64        `json:"quality_score"`
	PipelineID   uint           `gorm:"index" json:"pipeline_id"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for BlogDraft
func (BlogDraft) TableName() string {
	return "blog_drafts"
}
