package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/config"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
)

var microsoftScopes = []string{
	"offline_access",
	"https://graph.microsoft.com/Mail.Send",
	"https://graph.microsoft.com/Mail.Read",
	"https://graph.microsoft.com/Calendars.ReadWrite",
}

// AccessGrant is a freshly exchanged access token for one tenant mailbox.
type AccessGrant struct {
	UserID      uuid.UUID
	Provider    models.EmailProvider
	SenderEmail string
	Token       *oauth2.Token
}

type CredentialService interface {
	AccessToken(ctx context.Context, userID uuid.UUID) (*AccessGrant, error)
	Exchange(ctx context.Context, cred *models.EmailCredential) (*AccessGrant, error)
}

type refreshFunc func(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error)

type credentialService struct {
	credRepo repositories.CredentialRepository
	cfg      config.OAuthConfig
	refresh  refreshFunc
}

func NewCredentialService(credRepo repositories.CredentialRepository, cfg config.OAuthConfig) CredentialService {
	return &credentialService{
		credRepo: credRepo,
		cfg:      cfg,
		refresh:  refreshToken,
	}
}

// AccessToken implements CredentialService.
func (s *credentialService) AccessToken(ctx context.Context, userID uuid.UUID) (*AccessGrant, error) {
	cred, err := s.credRepo.FindActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.External(apperr.ReasonNoCredential, "tenant has no active email credential", err)
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return s.Exchange(ctx, cred)
}

// Exchange trades the stored refresh token for an access token. A transient
// network failure is retried once; an auth rejection is not.
func (s *credentialService) Exchange(ctx context.Context, cred *models.EmailCredential) (*AccessGrant, error) {
	oauthCfg, err := s.oauthConfig(cred)
	if err != nil {
		return nil, apperr.External(apperr.ReasonAuthRefreshFailed, err.Error(), err)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: s.cfg.Timeout})

	token, err := s.refresh(ctx, oauthCfg, cred.RefreshToken)
	if err != nil && isTransient(err) {
		log.Printf("⚠️ Token refresh for %s hit a transient error, retrying once: %v", cred.SenderEmail, err)
		token, err = s.refresh(ctx, oauthCfg, cred.RefreshToken)
	}
	if err != nil {
		return nil, apperr.External(apperr.ReasonAuthRefreshFailed, fmt.Sprintf("%s token refresh failed", cred.Provider), err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, apperr.External(apperr.ReasonAuthRefreshFailed, "token endpoint returned no access token", nil)
	}

	return &AccessGrant{
		UserID:      cred.UserID,
		Provider:    cred.Provider,
		SenderEmail: cred.SenderEmail,
		Token:       token,
	}, nil
}

func (s *credentialService) oauthConfig(cred *models.EmailCredential) (*oauth2.Config, error) {
	switch cred.Provider {
	case models.ProviderGmail:
		return &oauth2.Config{
			ClientID:     firstNonEmpty(cred.ClientID, s.cfg.GoogleClientID),
			ClientSecret: firstNonEmpty(cred.ClientSecret, s.cfg.GoogleClientSecret),
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailSendScope, gmail.GmailReadonlyScope, calendar.CalendarEventsScope},
		}, nil
	case models.ProviderOutlook:
		return &oauth2.Config{
			ClientID:     firstNonEmpty(cred.ClientID, s.cfg.MicrosoftClientID),
			ClientSecret: firstNonEmpty(cred.ClientSecret, s.cfg.MicrosoftClientSecret),
			Endpoint:     microsoft.AzureADEndpoint(s.cfg.MicrosoftTenant),
			Scopes:       microsoftScopes,
		}, nil
	}
	return nil, fmt.Errorf("unsupported email provider %q", cred.Provider)
}

func refreshToken(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)})
	return src.Token()
}

// isTransient reports network failures and 5xx answers from the token
// endpoint. A 4xx answer means the grant itself was rejected.
func isTransient(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
