// Package testutil opens throwaway SQLite databases migrated with the
// production schema, plus seed helpers for the common rows.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alfredoptarigan/job-orchestrator/internal/config"
	"alfredoptarigan/job-orchestrator/internal/models"
)

func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

// NewFileDB opens a SQLite file with several connections, for tests that need
// real concurrent transactions. Writers take the lock at BEGIN and wait for
// each other.
func NewFileDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(4)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func CreateTenant(t *testing.T, db *gorm.DB, mode models.EmailMode) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{
		Email:            fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		FullName:         "Alex Chen",
		EmailMode:        mode,
		HourlyEmailLimit: models.DefaultHourlyEmailLimit,
		DailyEmailLimit:  models.DefaultDailyEmailLimit,
		Skills:           datatypes.JSON(`["Go","PostgreSQL","Kubernetes"]`),
		RawResumeText:    "Alex Chen, backend engineer with seven years of Go and PostgreSQL.",
	}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func CreateCredential(t *testing.T, db *gorm.DB, userID uuid.UUID, provider models.EmailProvider) *models.EmailCredential {
	t.Helper()

	cred := &models.EmailCredential{
		UserID:       userID,
		Provider:     provider,
		SenderEmail:  "alex.chen@example.com",
		RefreshToken: "refresh-token",
		IsActive:     true,
	}
	require.NoError(t, db.Create(cred).Error)
	return cred
}

func CreateJob(t *testing.T, db *gorm.DB) (*models.Company, *models.Job) {
	t.Helper()

	company := &models.Company{
		CompanyName: "Acme " + uuid.NewString()[:8],
		HREmail:     "talent@acme.example",
	}
	require.NoError(t, db.Create(company).Error)

	job := &models.Job{
		CompanyID:      company.ID,
		JobTitle:       "Senior Backend Engineer",
		JobURL:         "https://jobs.example.com/" + uuid.NewString(),
		DescriptionRaw: "Build Go services on PostgreSQL.",
		RequiredSkills: datatypes.JSON(`["Go","PostgreSQL"]`),
		Status:         models.JobStatusAnalyzed,
	}
	require.NoError(t, db.Create(job).Error)
	return company, job
}

func CreateApplication(t *testing.T, db *gorm.DB, userID, jobID uuid.UUID, withEmail bool) *models.Application {
	t.Helper()

	app := &models.Application{
		UserID:             userID,
		JobID:              jobID,
		ResumeVersion:      models.CurrentResumeVersion,
		TailoredResumeText: "Tailored resume",
		AIDetectionScore:   models.DefaultAIDetectionScore,
		Status:             models.ApplicationReady,
	}
	if withEmail {
		app.EmailSubject = "Senior Backend Engineer application"
		app.EmailBody = "Hello, I would love to join Acme."
	}
	require.NoError(t, db.Create(app).Error)
	return app
}

// SeedSent inserts n SENT ledger rows created at the given time.
func SeedSent(t *testing.T, db *gorm.DB, userID uuid.UUID, n int, at time.Time) {
	t.Helper()

	for i := 0; i < n; i++ {
		sentAt := at
		entry := &models.DispatchLog{
			ExecutionID:    uuid.New(),
			UserID:         userID,
			JobID:          uuid.New(),
			EmailBodyHash:  uuid.NewString(),
			RecipientEmail: "hr@example.com",
			Subject:        "seed",
			SentStatus:     models.DispatchSent,
			SentAt:         &sentAt,
			CreatedAt:      at,
		}
		require.NoError(t, db.Create(entry).Error)
	}
}
