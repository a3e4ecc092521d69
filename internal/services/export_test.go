package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

func TestExportApplicationsWritesTrackerSheet(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, models.EmailModeDraft)
	company, job := testutil.CreateJob(t, db)
	require.NoError(t, db.Model(job).Update("fit_score", 88).Error)
	testutil.CreateApplication(t, db, tenant.ID, job.ID, true)

	other := testutil.CreateTenant(t, db, models.EmailModeDraft)
	_, otherJob := testutil.CreateJob(t, db)
	testutil.CreateApplication(t, db, other.ID, otherJob.ID, false)

	data, err := NewExportService(repositories.NewApplicationRepository(db)).ExportApplications(context.Background(), tenant.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(applicationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "Senior Backend Engineer", rows[1][0])
	assert.Equal(t, company.CompanyName, rows[1][1])
	assert.Equal(t, job.JobURL, rows[1][2])
	assert.Equal(t, "88", rows[1][3])
	assert.Equal(t, string(models.ApplicationReady), rows[1][4])
	assert.Equal(t, "Senior Backend Engineer application", rows[1][5])
}

func TestExportApplicationsEmptyTracker(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, models.EmailModeDraft)

	data, err := NewExportService(repositories.NewApplicationRepository(db)).ExportApplications(context.Background(), tenant.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(applicationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
