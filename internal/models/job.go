package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobStatusScraped   JobStatus = "SCRAPED"
	JobStatusAnalyzed  JobStatus = "ANALYZED"
	JobStatusLowFit    JobStatus = "LOW_FIT"
	JobStatusInterview JobStatus = "INTERVIEW"
)

type Company struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyName   string         `gorm:"type:text;not null;uniqueIndex" json:"company_name"`
	Industry      string         `gorm:"type:text" json:"industry,omitempty"`
	Location      string         `gorm:"type:text" json:"location,omitempty"`
	HRContactName string         `gorm:"type:text" json:"hr_contact_name,omitempty"`
	HREmail       string         `gorm:"type:text" json:"hr_email,omitempty"`
	TechStack     datatypes.JSON `gorm:"type:jsonb" json:"tech_stack,omitempty"`
	LastScrapedAt *time.Time     `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (Company) TableName() string {
	return "companies"
}

type Job struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"company_id"`
	JobTitle           string         `gorm:"type:text;not null" json:"job_title"`
	JobURL             string         `gorm:"type:text;not null;uniqueIndex" json:"job_url"`
	DescriptionRaw     string         `gorm:"type:text" json:"-"`
	DescriptionSummary string         `gorm:"type:text" json:"description_summary,omitempty"`
	RequiredSkills     datatypes.JSON `gorm:"type:jsonb" json:"required_skills,omitempty"`
	ExperienceLevel    string         `gorm:"type:text" json:"experience_level,omitempty"`
	EmploymentType     string         `gorm:"type:text" json:"employment_type,omitempty"`
	FitScore           *int           `json:"fit_score,omitempty"`
	GapAnalysis        datatypes.JSON `gorm:"type:jsonb" json:"gap_analysis,omitempty"`
	AlignmentReport    string         `gorm:"type:text" json:"alignment_report,omitempty"`
	StrategicAngle     string         `gorm:"type:text" json:"strategic_angle,omitempty"`
	Status             JobStatus      `gorm:"type:text;not null;default:'SCRAPED'" json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`

	// Relations
	Company Company `gorm:"foreignKey:CompanyID" json:"-"`
}

func (Job) TableName() string {
	return "jobs"
}
