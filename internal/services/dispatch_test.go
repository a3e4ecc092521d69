package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

func TestSendingIdenticalContentTwiceSkipsSecond(t *testing.T) {
	f := newFixture(t, nil)
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)
	_, job := testutil.CreateJob(t, f.db)
	ctx := context.Background()

	req := func() *DispatchRequest {
		return &DispatchRequest{
			Recipient: "talent@acme.example",
			Subject:   "Application",
			Body:      "Hello Acme",
			JobID:     job.ID,
			Source:    models.SourceManual,
		}
	}

	first, err := f.dispatch.Send(ctx, NewExecution(tenant), req())
	require.NoError(t, err)
	assert.Equal(t, "sent", first.Status())
	assert.Equal(t, "<sent-1@test>", first["provider_message_id"])

	secondExec := NewExecution(tenant)
	second, err := f.dispatch.Send(ctx, secondExec, req())
	require.NoError(t, err)
	assert.Equal(t, "skipped", second.Status())
	assert.Equal(t, "duplicate_email", second["reason"])

	var rows []models.DispatchLog
	require.NoError(t, f.db.Where("user_id = ?", tenant.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DispatchSent, rows[0].SentStatus)
	assert.Equal(t, "thread-1", rows[0].ProviderThreadID)

	assert.Len(t, f.mail.Sent(), 1)
	assert.Equal(t, []models.AuditStatus{models.AuditStarted, models.AuditSkipped},
		auditStatuses(f.audits(t, secondExec), models.ModuleEmailDispatch))
}

func TestDispatchApplicationAtHourlyCapIsRateLimited(t *testing.T) {
	f := newFixture(t, nil)
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)
	_, job := testutil.CreateJob(t, f.db)
	app := testutil.CreateApplication(t, f.db, tenant.ID, job.ID, true)
	testutil.SeedSent(t, f.db, tenant.ID, models.DefaultHourlyEmailLimit, time.Now().UTC().Add(-10*time.Minute))

	_, err := f.dispatch.DispatchApplication(context.Background(), NewExecution(tenant), &models.DispatchEmailData{
		ApplicationID: app.ID.String(),
	})
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindRateLimit, appErr.Kind)
	assert.Equal(t, apperr.ReasonHourlyLimit, appErr.Reason)
	assert.Equal(t, 429, appErr.StatusCode())

	assert.Equal(t, int64(models.DefaultHourlyEmailLimit), f.countDispatches(t, tenant.ID))
	assert.Empty(t, f.mail.Sent())
	assert.Zero(t, f.credentials.calls)
}

func TestDispatchApplicationFallsBackToCompanyEmail(t *testing.T) {
	f := newFixture(t, nil)
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeDraft)
	_, job := testutil.CreateJob(t, f.db)
	app := testutil.CreateApplication(t, f.db, tenant.ID, job.ID, true)

	outcome, err := f.dispatch.DispatchApplication(context.Background(), NewExecution(tenant), &models.DispatchEmailData{
		ApplicationID: app.ID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, "sent", outcome.Status())
	assert.Equal(t, app.ID, outcome["application_id"])
	require.Len(t, f.mail.Sent(), 1)
	assert.Equal(t, "talent@acme.example", f.mail.Sent()[0].To)

	stored, err := f.appRepo.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSent, stored.Status)
}

func TestDispatchApplicationHidesOtherTenants(t *testing.T) {
	f := newFixture(t, nil)
	owner := testutil.CreateTenant(t, f.db, models.EmailModeAuto)
	intruder := testutil.CreateTenant(t, f.db, models.EmailModeAuto)
	_, job := testutil.CreateJob(t, f.db)
	app := testutil.CreateApplication(t, f.db, owner.ID, job.ID, true)

	_, err := f.dispatch.DispatchApplication(context.Background(), NewExecution(intruder), &models.DispatchEmailData{
		ApplicationID: app.ID.String(),
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.dispatch.DispatchApplication(context.Background(), NewExecution(owner), &models.DispatchEmailData{
		ApplicationID: "not-a-uuid",
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestDispatchApplicationWithoutEmailIsNotFound(t *testing.T) {
	f := newFixture(t, nil)
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)
	_, job := testutil.CreateJob(t, f.db)
	app := testutil.CreateApplication(t, f.db, tenant.ID, job.ID, false)

	_, err := f.dispatch.DispatchApplication(context.Background(), NewExecution(tenant), &models.DispatchEmailData{
		ApplicationID: app.ID.String(),
	})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestFailedSendReleasesReservation(t *testing.T) {
	f := newFixture(t, nil)
	f.mail.sendErr = apperr.External(apperr.ReasonSendFailed, "provider down", errors.New("503"))
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)

	req := &DispatchRequest{
		Recipient: "talent@acme.example",
		Subject:   "Application",
		Body:      "Hello",
		JobID:     uuid.New(),
		Source:    models.SourceManual,
	}
	_, err := f.dispatch.Send(context.Background(), NewExecution(tenant), req)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindExternal))
	assert.Zero(t, f.countDispatches(t, tenant.ID))

	// the same content can be retried once the provider recovers
	f.mail.sendErr = nil
	outcome, err := f.dispatch.Send(context.Background(), NewExecution(tenant), req)
	require.NoError(t, err)
	assert.Equal(t, "sent", outcome.Status())
}

func TestMissingCredentialReleasesReservation(t *testing.T) {
	f := newFixture(t, nil)
	f.credentials.err = apperr.External(apperr.ReasonNoCredential, "no credential", nil)
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)

	_, err := f.dispatch.Send(context.Background(), NewExecution(tenant), &DispatchRequest{
		Recipient: "talent@acme.example",
		Subject:   "Application",
		Body:      "Hello",
		Source:    models.SourceManual,
	})
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ReasonNoCredential, appErr.Reason)
	assert.Zero(t, f.countDispatches(t, tenant.ID))
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	f := newFixture(t, nil)
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)

	_, err := f.dispatch.Send(context.Background(), NewExecution(tenant), &DispatchRequest{
		Recipient: "not an address",
		Subject:   "Application",
		Body:      "Hello",
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.countDispatches(t, tenant.ID))
}

func TestContentHashDependsOnSubjectAndBody(t *testing.T) {
	assert.Equal(t, ContentHash("a", "b"), ContentHash("a", "b"))
	assert.NotEqual(t, ContentHash("a", "b"), ContentHash("a", "c"))
	assert.NotEqual(t, ContentHash("ab", ""), ContentHash("a", "b"))
	assert.Len(t, ContentHash("a", "b"), 64)
}

func TestSendAcceptedAfterDeadlineIsStillRecorded(t *testing.T) {
	f := newFixture(t, nil)
	f.mail.acceptLate = true
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)
	_, job := testutil.CreateJob(t, f.db)
	app := testutil.CreateApplication(t, f.db, tenant.ID, job.ID, true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	exec := NewExecution(tenant)
	outcome, err := f.dispatch.DispatchApplication(ctx, exec, &models.DispatchEmailData{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "sent", outcome.Status())
	assert.Len(t, f.mail.Sent(), 1)

	var rows []models.DispatchLog
	require.NoError(t, f.db.Where("user_id = ?", tenant.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DispatchSent, rows[0].SentStatus)
	assert.Equal(t, "<sent-1@test>", rows[0].ProviderMessageID)

	stored, err := f.appRepo.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationSent, stored.Status)
	assert.NotNil(t, stored.SentAt)

	assert.Equal(t, []models.AuditStatus{models.AuditStarted, models.AuditSuccess},
		auditStatuses(f.audits(t, exec), models.ModuleEmailDispatch))

	// a resubmission after the late acceptance is a duplicate, not a second send
	f.mail.acceptLate = false
	again, err := f.dispatch.DispatchApplication(context.Background(), NewExecution(tenant), &models.DispatchEmailData{ApplicationID: app.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, "skipped", again.Status())
	assert.Len(t, f.mail.Sent(), 1)
}
