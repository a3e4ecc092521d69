package services

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/config"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
	"alfredoptarigan/job-orchestrator/internal/testutil"
)

func newTestCredentialService(t *testing.T, refresh refreshFunc) (*credentialService, *models.Tenant) {
	t.Helper()
	db := testutil.NewDB(t)
	tenant := testutil.CreateTenant(t, db, models.EmailModeAuto)
	testutil.CreateCredential(t, db, tenant.ID, models.ProviderGmail)

	return &credentialService{
		credRepo: repositories.NewCredentialRepository(db),
		cfg:      config.OAuthConfig{GoogleClientID: "client", GoogleClientSecret: "secret", Timeout: time.Second},
		refresh:  refresh,
	}, tenant
}

func TestAccessTokenRetriesTransientFailureOnce(t *testing.T) {
	calls := 0
	svc, tenant := newTestCredentialService(t, func(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
		calls++
		if calls == 1 {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: context.DeadlineExceeded}
		}
		assert.Equal(t, "refresh-token", refreshToken)
		assert.Equal(t, "client", cfg.ClientID)
		return &oauth2.Token{AccessToken: "fresh"}, nil
	})

	grant, err := svc.AccessToken(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "fresh", grant.Token.AccessToken)
	assert.Equal(t, "alex.chen@example.com", grant.SenderEmail)
	assert.Equal(t, models.ProviderGmail, grant.Provider)
}

func TestAccessTokenDoesNotRetryRejectedGrant(t *testing.T) {
	calls := 0
	svc, tenant := newTestCredentialService(t, func(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
		calls++
		return nil, &oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadRequest}}
	})

	_, err := svc.AccessToken(context.Background(), tenant.ID)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ReasonAuthRefreshFailed, appErr.Reason)
	assert.Equal(t, 1, calls)
}

func TestAccessTokenRejectsEmptyToken(t *testing.T) {
	svc, tenant := newTestCredentialService(t, func(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
		return &oauth2.Token{}, nil
	})

	_, err := svc.AccessToken(context.Background(), tenant.ID)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.ReasonAuthRefreshFailed, appErr.Reason)
}

func TestAccessTokenWithoutCredential(t *testing.T) {
	svc, _ := newTestCredentialService(t, nil)
	_, err := svc.AccessToken(context.Background(), uuid.New())
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindExternal, appErr.Kind)
	assert.Equal(t, apperr.ReasonNoCredential, appErr.Reason)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusBadGateway}}))
	assert.False(t, isTransient(&oauth2.RetrieveError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}))
	assert.True(t, isTransient(&net.DNSError{Err: "no such host", Name: "oauth2.googleapis.com"}))
	assert.False(t, isTransient(context.Canceled))
}
