package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

func TestUpsertCompanyPreservesIDAndKnownFields(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	first, err := repo.UpsertCompany(ctx, &models.Company{CompanyName: "Globex", HREmail: "jobs@globex.example", Industry: "Energy"})
	require.NoError(t, err)

	second, err := repo.UpsertCompany(ctx, &models.Company{CompanyName: "Globex", Location: "Berlin"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "jobs@globex.example", second.HREmail)
	assert.Equal(t, "Berlin", second.Location)
	assert.NotNil(t, second.LastScrapedAt)
}

func TestUpsertJobKeepsStatusOnRescrape(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewJobRepository(db)
	ctx := context.Background()

	company, err := repo.UpsertCompany(ctx, &models.Company{CompanyName: "Initech"})
	require.NoError(t, err)

	job, err := repo.UpsertJob(ctx, &models.Job{
		CompanyID:      company.ID,
		JobTitle:       "Platform Engineer",
		JobURL:         "https://initech.example/jobs/1",
		DescriptionRaw: "v1",
		RequiredSkills: datatypes.JSON(`["Go"]`),
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusScraped, job.Status)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, models.JobStatusInterview))

	again, err := repo.UpsertJob(ctx, &models.Job{
		CompanyID:      company.ID,
		JobTitle:       "Senior Platform Engineer",
		JobURL:         "https://initech.example/jobs/1",
		DescriptionRaw: "v2",
		RequiredSkills: datatypes.JSON(`["Go","Terraform"]`),
	})
	require.NoError(t, err)

	assert.Equal(t, job.ID, again.ID)
	assert.Equal(t, "Senior Platform Engineer", again.JobTitle)
	assert.Equal(t, "v2", again.DescriptionRaw)
	assert.Equal(t, models.JobStatusInterview, again.Status)
}

func TestApplicationUpsertKeepsOneCurrentRow(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()

	tenant := testutil.CreateTenant(t, db, models.EmailModeDraft)
	_, job := testutil.CreateJob(t, db)

	first, err := repo.Upsert(ctx, &models.Application{UserID: tenant.ID, JobID: job.ID, TailoredResumeText: "v1", Status: models.ApplicationPendingReview})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, &models.Application{UserID: tenant.ID, JobID: job.ID, TailoredResumeText: "v2", Status: models.ApplicationPendingReview})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "v2", second.TailoredResumeText)

	var count int64
	require.NoError(t, db.Model(&models.Application{}).Where("user_id = ?", tenant.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
