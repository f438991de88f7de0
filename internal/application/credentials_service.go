package application

import (
	"context"
	"fmt"

	"mercata-core-vendor-layer/internal/domain"
	"mercata-core-vendor-layer/internal/ports"

	"github.com/rs/zerolog"
)

// DefaultAuth is the process-wide fallback credential set, read from the
// environment at startup. Shops without auth of their own resolve to it.
type DefaultAuth struct {
	Platform     string
	ClientID     string
	RefreshToken string
	APIBase      string
	TokenURL     string
}

// CredentialsService resolves shops to vendor auth material and persists
// refresh-token rotation. Refresh tokens are sealed at rest and opened here.
type CredentialsService struct {
	authStore ports.ShopAuthStore
	crypt     ports.EncryptionService
	defaults  DefaultAuth
	logger    zerolog.Logger
}

// NewCredentialsService creates a new credentials service.
func NewCredentialsService(
	authStore ports.ShopAuthStore,
	crypt ports.EncryptionService,
	defaults DefaultAuth,
	logger zerolog.Logger,
) *CredentialsService {
	return &CredentialsService{
		authStore: authStore,
		crypt:     crypt,
		defaults:  defaults,
		logger:    logger,
	}
}

var _ ports.CredentialResolver = (*CredentialsService)(nil)

// Resolve returns the auth material for a shop, falling back to the process
// defaults. An empty shopID resolves straight to the defaults. Shops whose
// stored auth is incomplete fall back too rather than failing outright.
func (s *CredentialsService) Resolve(ctx context.Context, shopID string) (domain.ShopAuth, error) {
	if shopID != "" {
		stored, err := s.authStore.GetShopAuth(ctx, shopID)
		if err != nil {
			return domain.ShopAuth{}, fmt.Errorf("failed to load shop auth: %w", err)
		}
		if stored != nil {
			auth := *stored
			auth.RefreshToken, err = s.crypt.Decrypt(stored.RefreshToken)
			if err != nil {
				return domain.ShopAuth{}, fmt.Errorf("failed to open refresh token for shop %s: %w", shopID, err)
			}
			auth.Source = domain.AuthSourceShop
			if auth.Usable() {
				return auth, nil
			}
			s.logger.Warn().Str("shopId", shopID).Msg("Stored shop auth incomplete, falling back to defaults")
		}
	}

	def := domain.ShopAuth{
		ShopID:       shopID,
		Platform:     s.defaults.Platform,
		ClientID:     s.defaults.ClientID,
		RefreshToken: s.defaults.RefreshToken,
		APIBase:      s.defaults.APIBase,
		TokenURL:     s.defaults.TokenURL,
		Source:       domain.AuthSourceDefault,
	}
	if !def.Usable() {
		return domain.ShopAuth{}, domain.ErrCredentialMissing
	}
	return def, nil
}

// RotateRefreshToken seals and persists a rotated refresh token. Rotation of
// the default credential set is not persisted; it lives in the environment.
func (s *CredentialsService) RotateRefreshToken(ctx context.Context, shopID string, newToken string) error {
	if shopID == "" {
		return nil
	}
	sealed, err := s.crypt.Encrypt(newToken)
	if err != nil {
		return fmt.Errorf("failed to seal refresh token: %w", err)
	}
	if err := s.authStore.RotateRefreshToken(ctx, shopID, sealed); err != nil {
		return fmt.Errorf("failed to persist rotated token: %w", err)
	}
	s.logger.Info().Str("shopId", shopID).Msg("Refresh token rotated")
	return nil
}

// ListShopIDs returns the shops with stored vendor auth.
func (s *CredentialsService) ListShopIDs(ctx context.Context) ([]string, error) {
	return s.authStore.ListShopIDs(ctx)
}
