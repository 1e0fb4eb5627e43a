package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/accounts"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/database"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const opLink = "identity.link"

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingDirectory  = errors.New("account directory is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// LinkerConfig describes the dependencies required for OAuth identity resolution.
type LinkerConfig struct {
	Database   *gorm.DB
	Accounts   *accounts.Directory
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// LinkRequest carries the identity asserted by a provider.
type LinkRequest struct {
	Provider       Provider
	ProviderUserID string
	Email          string
	DisplayName    string
}

// LinkResult reports the resolved account and what the resolution wrote.
type LinkResult struct {
	Account accounts.Account
	Created bool
	Linked  bool
}

// Linker maps provider logins onto accounts.
type Linker struct {
	db         *gorm.DB
	accounts   *accounts.Directory
	idProvider ids.Provider
	now        func() time.Time
	logger     *zap.Logger
	cache      sync.Map
}

// NewLinker constructs the identity linker.
func NewLinker(cfg LinkerConfig) (*Linker, error) {
	if cfg.Database == nil {
		return nil, apperrors.Internal("identity.new", "missing_database", errMissingDatabase)
	}
	if cfg.Accounts == nil {
		return nil, apperrors.Internal("identity.new", "missing_directory", errMissingDirectory)
	}
	if cfg.IDProvider == nil {
		return nil, apperrors.Internal("identity.new", "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linker{
		db:         cfg.Database,
		accounts:   cfg.Accounts,
		idProvider: cfg.IDProvider,
		now:        clock,
		logger:     logger,
	}, nil
}

// Link resolves the login in one transaction: an existing link wins, then an
// account with the same email gets a new link, otherwise a new account and link
// are created together.
func (l *Linker) Link(ctx context.Context, request LinkRequest) (LinkResult, error) {
	if _, supported := providerEndpoints[request.Provider]; !supported {
		return LinkResult{}, apperrors.New(opLink, apperrors.KindUnsupportedProvider, "unsupported oauth provider")
	}
	providerUserID := normalize(request.ProviderUserID)
	if providerUserID == "" {
		return LinkResult{}, apperrors.New(opLink, apperrors.KindValidation, "provider user id is required")
	}
	email := accounts.NormalizeEmail(request.Email)
	if email == "" {
		return LinkResult{}, apperrors.New(opLink, apperrors.KindValidation, "email is required")
	}
	displayName := normalize(request.DisplayName)
	if displayName == "" {
		return LinkResult{}, apperrors.New(opLink, apperrors.KindValidation, "display name is required")
	}

	// Links and accounts are never mutated, so a cached resolution stays valid.
	cacheKey := linkKey(request.Provider, providerUserID)
	if cached, ok := l.cache.Load(cacheKey); ok {
		if account, ok := cached.(accounts.Account); ok {
			return LinkResult{Account: account}, nil
		}
	}

	var result LinkResult
	txErr := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		directory := l.accounts.WithTx(tx)

		var existing OAuthLink
		err := tx.Where("provider = ? AND provider_user_id = ?", request.Provider, providerUserID).
			Take(&existing).
			Error
		if err == nil {
			account, err := directory.FindByID(ctx, existing.AccountID)
			if err != nil {
				return err
			}
			result = LinkResult{Account: account}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			l.logError("link_select_failed", err, zap.String("provider", request.Provider.String()))
			return apperrors.Internal(opLink, "link_select_failed", err)
		}

		created := false
		account, err := directory.FindByEmail(ctx, email)
		if errors.Is(err, apperrors.ErrNotFound) {
			account, err = directory.CreateWithoutPassword(ctx, email, displayName)
			if errors.Is(err, apperrors.ErrDuplicateEmail) {
				return apperrors.Wrap(opLink, apperrors.KindConflict, err)
			}
			created = true
		}
		if err != nil {
			return err
		}

		linkID, err := l.idProvider.NewID()
		if err != nil {
			l.logError("id_generation_failed", err)
			return apperrors.Internal(opLink, "id_generation_failed", err)
		}
		link := OAuthLink{
			ID:             linkID,
			AccountID:      account.ID,
			Provider:       request.Provider,
			ProviderUserID: providerUserID,
			EmailSnapshot:  email,
			CreatedAt:      l.now().UTC(),
		}
		if err := tx.Create(&link).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperrors.Wrap(opLink, apperrors.KindConflict, err)
			}
			l.logError("link_insert_failed", err, zap.String("provider", request.Provider.String()))
			return apperrors.Internal(opLink, "link_insert_failed", err)
		}

		result = LinkResult{Account: account, Created: created, Linked: true}
		return nil
	})
	if txErr != nil {
		return LinkResult{}, txErr
	}

	l.cache.Store(cacheKey, result.Account)
	l.logger.Info("oauth login resolved",
		zap.String("provider", request.Provider.String()),
		zap.String("account_id", result.Account.ID),
		zap.Bool("created", result.Created),
		zap.Bool("linked", result.Linked))
	return result, nil
}

func (l *Linker) logError(reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", opLink),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	l.logger.Error("identity linker error", attrs...)
}
