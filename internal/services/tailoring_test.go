package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

func TestDraftTenantKeepsApplicationForReview(t *testing.T) {
	f := newFixture(t, withOutputs(tailoringOutputs, map[string]string{
		StageNormalizeJob: normalizedPosting,
		StageFitAnalysis:  `{"fit_score": 82, "gap_analysis": {"missing": []}, "strategic_angle": "payments"}`,
	}))
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeDraft)
	exec := NewExecution(tenant)

	outcome, err := f.jobs.Analyze(context.Background(), exec, analyzeRequest())
	require.NoError(t, err)

	assert.Equal(t, "draft_saved", outcome.Status())
	require.Contains(t, outcome, "application_id")

	var app models.Application
	require.NoError(t, f.db.Where("user_id = ?", tenant.ID).First(&app).Error)
	assert.Equal(t, outcome["application_id"], app.ID)
	assert.Equal(t, models.ApplicationPendingReview, app.Status)
	assert.Equal(t, "Senior Backend Engineer application", app.EmailSubject)
	assert.Equal(t, 22, app.AIDetectionScore)

	assert.Zero(t, f.countDispatches(t, tenant.ID))
	assert.Empty(t, f.mail.Sent())
	assert.Len(t, f.notifier.titles, 1)
}

func TestAutoTenantSendsToHREmail(t *testing.T) {
	f := newFixture(t, tailoringOutputs)
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)
	_, job := testutil.CreateJob(t, f.db)
	job, err := f.jobRepo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)

	exec := NewExecution(tenant)
	outcome, err := f.tailoring.Tailor(context.Background(), exec, job)
	require.NoError(t, err)

	assert.Equal(t, "sent", outcome.Status())
	sent := f.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "talent@acme.example", sent[0].To)
	assert.Equal(t, "Senior Backend Engineer application", sent[0].Subject)

	var app models.Application
	require.NoError(t, f.db.Where("user_id = ?", tenant.ID).First(&app).Error)
	assert.Equal(t, models.ApplicationSent, app.Status)
	assert.NotNil(t, app.SentAt)
}

func TestAutoTenantWithoutRecipientSavesDraft(t *testing.T) {
	f := newFixture(t, tailoringOutputs)
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)
	_, job := testutil.CreateJob(t, f.db)
	job.Company.HREmail = ""

	outcome, err := f.tailoring.Tailor(context.Background(), NewExecution(tenant), job)
	require.NoError(t, err)

	assert.Equal(t, "draft_saved", outcome.Status())
	assert.Equal(t, "missing_recipient", outcome["reason"])
	assert.Zero(t, f.countDispatches(t, tenant.ID))
}

func TestRenderResumeListsHighlights(t *testing.T) {
	tenant := &models.Tenant{FullName: "Alex Chen"}
	text := renderResume(tenant, "Go engineer", []interface{}{
		map[string]interface{}{
			"title":      "Backend Engineer",
			"company":    "Initech",
			"highlights": []interface{}{"Cut latency", "Led migration"},
		},
		"Open source maintainer",
	})

	assert.Contains(t, text, "Alex Chen\n\nGo engineer")
	assert.Contains(t, text, "Backend Engineer, Initech")
	assert.Contains(t, text, "- Led migration")
	assert.Contains(t, text, "- Open source maintainer")
}
