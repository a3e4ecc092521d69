package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type AuditStatus string

const (
	AuditStarted AuditStatus = "STARTED"
	AuditSuccess AuditStatus = "SUCCESS"
	AuditSkipped AuditStatus = "SKIPPED"
	AuditFailed  AuditStatus = "FAILED"
)

const (
	ModuleResumeIngestion = "resume_ingestion"
	ModuleJobAnalysis     = "job_analysis"
	ModuleTailoring       = "tailoring"
	ModuleEmailDispatch   = "email_dispatch"
	ModuleInboundReply    = "inbound_reply"
	ModuleInterview       = "interview_scheduling"
)

// AuditRecord is append-only; nothing updates or deletes these rows.
type AuditRecord struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
	ModuleName    string         `gorm:"type:text;not null;index" json:"module_name"`
	ExecutionID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"execution_id"`
	Status        AuditStatus    `gorm:"type:text;not null" json:"status"`
	InputSummary  datatypes.JSON `gorm:"type:jsonb" json:"input_summary,omitempty"`
	OutputSummary datatypes.JSON `gorm:"type:jsonb" json:"output_summary,omitempty"`
	ErrorMessage  string         `gorm:"type:text" json:"error_message,omitempty"`
	LLMModelUsed  string         `gorm:"type:text" json:"llm_model_used,omitempty"`
	TokenUsage    int            `gorm:"not null;default:0" json:"token_usage"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (AuditRecord) TableName() string {
	return "workflow_logs"
}
