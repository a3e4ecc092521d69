package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type EmailMode string

const (
	EmailModeAuto  EmailMode = "AUTO"
	EmailModeDraft EmailMode = "DRAFT"
)

const (
	DefaultHourlyEmailLimit = 10
	DefaultDailyEmailLimit  = 50
)

type Tenant struct {
	ID               uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Email            string         `gorm:"type:text;index" json:"email"`
	FullName         string         `gorm:"type:text" json:"full_name"`
	Phone            string         `gorm:"type:text" json:"phone,omitempty"`
	Location         string         `gorm:"type:text" json:"location,omitempty"`
	Summary          string         `gorm:"type:text" json:"summary,omitempty"`
	EmailMode        EmailMode      `gorm:"type:text;not null;default:'DRAFT'" json:"email_mode"`
	HourlyEmailLimit int            `gorm:"not null;default:10" json:"hourly_email_limit"`
	DailyEmailLimit  int            `gorm:"not null;default:50" json:"daily_email_limit"`
	APIKeyHash       *string        `gorm:"type:text" json:"-"`
	Skills           datatypes.JSON `gorm:"type:jsonb" json:"skills,omitempty"`
	Experience       datatypes.JSON `gorm:"type:jsonb" json:"experience,omitempty"`
	Projects         datatypes.JSON `gorm:"type:jsonb" json:"projects,omitempty"`
	Education        datatypes.JSON `gorm:"type:jsonb" json:"education,omitempty"`
	Certifications   datatypes.JSON `gorm:"type:jsonb" json:"certifications,omitempty"`
	PreferredRoles   datatypes.JSON `gorm:"type:jsonb" json:"preferred_roles,omitempty"`
	RawResumeText    string         `gorm:"type:text" json:"-"`
	ResumeUpdatedAt  *time.Time     `json:"resume_updated_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (Tenant) TableName() string {
	return "users"
}

// HourlyLimit returns the tenant's hourly cap, falling back to the default
// when the column was never set.
func (t *Tenant) HourlyLimit() int {
	if t.HourlyEmailLimit <= 0 {
		return DefaultHourlyEmailLimit
	}
	return t.HourlyEmailLimit
}

func (t *Tenant) DailyLimit() int {
	if t.DailyEmailLimit <= 0 {
		return DefaultDailyEmailLimit
	}
	return t.DailyEmailLimit
}

func (t *Tenant) AutoSend() bool {
	return t.EmailMode == EmailModeAuto
}

type EmailProvider string

const (
	ProviderGmail   EmailProvider = "GMAIL"
	ProviderOutlook EmailProvider = "OUTLOOK"
)

// EmailCredential is a tenant's mailbox grant. ClientID and ClientSecret
// override the deployment's OAuth app when set.
type EmailCredential struct {
	ID           uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"user_id"`
	Provider     EmailProvider `gorm:"type:text;not null" json:"provider"`
	SenderEmail  string        `gorm:"type:text;not null" json:"sender_email"`
	RefreshToken string        `gorm:"type:text;not null" json:"-"`
	ClientID     string        `gorm:"type:text" json:"-"`
	ClientSecret string        `gorm:"type:text" json:"-"`
	IsActive     bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (EmailCredential) TableName() string {
	return "user_email_credentials"
}
