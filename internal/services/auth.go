package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"alfredoptarigan/job-orchestrator/internal/apperr"
	"alfredoptarigan/job-orchestrator/internal/models"
	"alfredoptarigan/job-orchestrator/internal/repositories"
)

// Credentials are the three headers every automation call carries.
type Credentials struct {
	Secret   string
	TenantID string
	APIKey   string
}

type AuthGate interface {
	Authenticate(ctx context.Context, creds Credentials) (*models.Tenant, error)
}

type authGate struct {
	secret     string
	tenantRepo repositories.TenantRepository
}

func NewAuthGate(secret string, tenantRepo repositories.TenantRepository) AuthGate {
	return &authGate{secret: secret, tenantRepo: tenantRepo}
}

// Authenticate implements AuthGate. It only reads.
func (g *authGate) Authenticate(ctx context.Context, creds Credentials) (*models.Tenant, error) {
	if g.secret == "" || !constantTimeEqual(creds.Secret, g.secret) {
		return nil, apperr.Auth(apperr.ReasonUnauthorized, "invalid automation secret")
	}

	tenantID, err := uuid.Parse(creds.TenantID)
	if err != nil {
		return nil, apperr.Auth(apperr.ReasonTenantNotFound, "tenant not found")
	}

	tenant, err := g.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.Auth(apperr.ReasonTenantNotFound, "tenant not found")
		}
		return nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}

	// a tenant without a stored hash has not been issued a key yet
	if tenant.APIKeyHash != nil && *tenant.APIKeyHash != "" {
		if !constantTimeEqual(HashAPIKey(creds.APIKey), *tenant.APIKeyHash) {
			return nil, apperr.Auth(apperr.ReasonInvalidKey, "invalid tenant api key")
		}
	}

	return tenant, nil
}

// HashAPIKey returns the hex sha256 stored in users.api_key_hash.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
