package services

import (
	"github.com/google/uuid"

	"alfredoptarigan/job-orchestrator/internal/models"
)

// Execution is the unit of work for one webhook call or one polled message.
// It carries the execution id shared by every audit record and ledger row the
// run writes, plus the running model and token totals.
type Execution struct {
	ID     uuid.UUID
	Tenant *models.Tenant
	Model  string
	Tokens int
}

func NewExecution(tenant *models.Tenant) *Execution {
	return &Execution{ID: uuid.New(), Tenant: tenant}
}

// Track adds a completion's usage to the run.
func (e *Execution) Track(result *CompletionResult) {
	if result == nil {
		return
	}
	if result.Model != "" {
		e.Model = result.Model
	}
	e.Tokens += result.Tokens
}
