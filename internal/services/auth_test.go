package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

func TestAuthenticate(t *testing.T) {
	db := testutil.NewDB(t)
	keyed := testutil.CreateTenant(t, db, models.EmailModeDraft)
	hash := HashAPIKey("tenant-key")
	require.NoError(t, db.Model(keyed).Update("api_key_hash", hash).Error)
	unkeyed := testutil.CreateTenant(t, db, models.EmailModeDraft)

	gate := NewAuthGate("s3cret", repositories.NewTenantRepository(db))
	ctx := context.Background()

	tests := []struct {
		name   string
		creds  Credentials
		reason string
		status int
		want   uuid.UUID
	}{
		{name: "bad secret", creds: Credentials{Secret: "nope", TenantID: keyed.ID.String(), APIKey: "tenant-key"}, reason: apperr.ReasonUnauthorized, status: http.StatusUnauthorized},
		{name: "malformed tenant", creds: Credentials{Secret: "s3cret", TenantID: "not-a-uuid"}, reason: apperr.ReasonTenantNotFound, status: http.StatusNotFound},
		{name: "unknown tenant", creds: Credentials{Secret: "s3cret", TenantID: uuid.NewString()}, reason: apperr.ReasonTenantNotFound, status: http.StatusNotFound},
		{name: "wrong key", creds: Credentials{Secret: "s3cret", TenantID: keyed.ID.String(), APIKey: "other"}, reason: apperr.ReasonInvalidKey, status: http.StatusForbidden},
		{name: "valid key", creds: Credentials{Secret: "s3cret", TenantID: keyed.ID.String(), APIKey: "tenant-key"}, want: keyed.ID},
		{name: "tenant without key", creds: Credentials{Secret: "s3cret", TenantID: unkeyed.ID.String()}, want: unkeyed.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenant, err := gate.Authenticate(ctx, tt.creds)
			if tt.reason != "" {
				appErr, ok := apperr.As(err)
				require.True(t, ok, "expected apperr, got %v", err)
				assert.Equal(t, apperr.KindAuth, appErr.Kind)
				assert.Equal(t, tt.reason, appErr.Reason)
				assert.Equal(t, tt.status, appErr.StatusCode())
				assert.Nil(t, tenant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tenant.ID)
		})
	}
}

func TestAuthenticateRejectsEverythingWithoutConfiguredSecret(t *testing.T) {
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, models.EmailModeDraft)

	_, err := NewAuthGate("", repositories.NewTenantRepository(db)).
		Authenticate(context.Background(), Credentials{TenantID: tenant.ID.String()})
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}
