package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

func TestReapOnceFreesOrphanedReservation(t *testing.T) {
	f := newFixture(t, nil)
	tenant := testutil.CreateTenant(t, f.db, models.EmailModeAuto)
	_, job := testutil.CreateJob(t, f.db)
	req := &DispatchRequest{
		Recipient: "talent@acme.example",
		Subject:   "Application",
		Body:      "Hello",
		JobID:     job.ID,
		Source:    models.SourceManual,
	}

	orphan := &models.DispatchLog{
		ExecutionID:    NewExecution(tenant).ID,
		UserID:         tenant.ID,
		JobID:          job.ID,
		EmailBodyHash:  ContentHash(req.Subject, req.Body),
		RecipientEmail: req.Recipient,
		Subject:        req.Subject,
	}
	require.NoError(t, f.dispatchRepo.Reserve(context.Background(), &repositories.Reservation{
		Entry:       orphan,
		HourlyLimit: tenant.HourlyLimit(),
		DailyLimit:  tenant.DailyLimit(),
		Now:         time.Now().UTC().Add(-2 * time.Hour),
	}))

	blocked, err := f.dispatch.Send(context.Background(), NewExecution(tenant), req)
	require.NoError(t, err)
	assert.Equal(t, "skipped", blocked.Status())

	reaper := NewLedgerReaper(f.dispatchRepo, time.Hour, "@every 1h")
	assert.Equal(t, int64(1), reaper.ReapOnce(context.Background()))
	assert.Zero(t, reaper.ReapOnce(context.Background()))

	sent, err := f.dispatch.Send(context.Background(), NewExecution(tenant), req)
	require.NoError(t, err)
	assert.Equal(t, "sent", sent.Status())
	assert.Len(t, f.mail.Sent(), 1)
}

func TestLedgerReaperRejectsBadSettings(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewDispatchRepository(db)

	assert.Error(t, NewLedgerReaper(repo, 0, "@every 1h").Start())
	assert.Error(t, NewLedgerReaper(repo, time.Hour, "every tuesday").Start())
}
