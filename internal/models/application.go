package models

import (
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	ApplicationPendingReview ApplicationStatus = "PENDING_REVIEW"
	ApplicationReady         ApplicationStatus = "READY"
	ApplicationSent          ApplicationStatus = "SENT"
)

// CurrentResumeVersion is the version every tailoring run writes to, so each
// (tenant, job) pair keeps exactly one current application.
const CurrentResumeVersion = 1

const DefaultAIDetectionScore = 50

type Application struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:ux_application_user_job_version,priority:1" json:"user_id"`
	JobID              uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:ux_application_user_job_version,priority:2" json:"job_id"`
	ResumeVersion      int               `gorm:"not null;default:1;uniqueIndex:ux_application_user_job_version,priority:3" json:"resume_version"`
	TailoredSummary    string            `gorm:"type:text" json:"tailored_summary,omitempty"`
	TailoredResumeText string            `gorm:"type:text" json:"tailored_resume_text,omitempty"`
	AIDetectionScore   int               `gorm:"not null;default:50" json:"ai_detection_score"`
	HumanizationPass   int               `gorm:"not null;default:0" json:"humanization_pass"`
	GenerationModel    string            `gorm:"type:text" json:"generation_model,omitempty"`
	EmailSubject       string            `gorm:"type:text" json:"email_subject,omitempty"`
	EmailBody          string            `gorm:"type:text" json:"email_body,omitempty"`
	Status             ApplicationStatus `gorm:"type:text;not null;default:'PENDING_REVIEW'" json:"status"`
	SentAt             *time.Time        `json:"sent_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`

	// Relations
	Job Job `gorm:"foreignKey:JobID" json:"-"`
}

func (Application) TableName() string {
	return "applications"
}

func (a *Application) HasEmail() bool {
	return a.EmailSubject != "" && a.EmailBody != ""
}
