package accounts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/database"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opRegister         = "accounts.register"
	opAuthenticate     = "accounts.authenticate"
	opCreateOAuth      = "accounts.create_oauth"
	opFindByEmail      = "accounts.find_by_email"
	opFindByID         = "accounts.find_by_id"
	opAccountExists    = "accounts.exists"
	opListDiscoverable = "accounts.list_discoverable"

	unusableSecretPrefix = "oauth-"

	// fallbackDecoyDigest is a well-formed cost-10 bcrypt digest used when a fresh decoy cannot be minted.
	fallbackDecoyDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingHasher     = errors.New("password hasher is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// DirectoryConfig describes the dependencies of the account directory.
type DirectoryConfig struct {
	Database   *gorm.DB
	Hasher     PasswordHasher
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// RegisterInput carries the raw registration fields.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// Directory registers and authenticates accounts.
type Directory struct {
	db         *gorm.DB
	hasher     PasswordHasher
	idProvider ids.Provider
	clock      func() time.Time
	logger     *zap.Logger
	decoy      *decoyDigest
}

// decoyDigest is verified against when an email is unknown so both failure paths hash.
type decoyDigest struct {
	once   sync.Once
	digest string
}

// NewDirectory validates the configuration and constructs a Directory.
func NewDirectory(cfg DirectoryConfig) (*Directory, error) {
	if cfg.Database == nil {
		return nil, apperrors.Internal("accounts.new", "missing_database", errMissingDatabase)
	}
	if cfg.Hasher == nil {
		return nil, apperrors.Internal("accounts.new", "missing_hasher", errMissingHasher)
	}
	if cfg.IDProvider == nil {
		return nil, apperrors.Internal("accounts.new", "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Directory{
		db:         cfg.Database,
		hasher:     cfg.Hasher,
		idProvider: cfg.IDProvider,
		clock:      clock,
		logger:     logger,
		decoy:      &decoyDigest{},
	}, nil
}

// WithTx returns a Directory whose store operations run on tx.
func (d *Directory) WithTx(tx *gorm.DB) *Directory {
	clone := *d
	clone.db = tx
	return &clone
}

// Register creates a password account. The unique email index decides duplicates.
func (d *Directory) Register(ctx context.Context, input RegisterInput) (Account, error) {
	email := NormalizeEmail(input.Email)
	displayName := normalizeDisplayName(input.DisplayName)
	if email == "" {
		return Account{}, apperrors.New(opRegister, apperrors.KindValidation, "email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return Account{}, apperrors.New(opRegister, apperrors.KindValidation, "password is required")
	}
	if displayName == "" {
		return Account{}, apperrors.New(opRegister, apperrors.KindValidation, "display name is required")
	}

	digest, err := d.hasher.Hash(input.Password)
	if errors.Is(err, ErrPasswordTooLong) {
		return Account{}, apperrors.Wrap(opRegister, apperrors.KindValidation, err)
	}
	if err != nil {
		d.logError(opRegister, "hash_failed", err)
		return Account{}, apperrors.Internal(opRegister, "hash_failed", err)
	}

	account, err := d.insert(ctx, opRegister, email, digest, displayName)
	if err != nil {
		return Account{}, err
	}
	d.logger.Info("account registered", zap.String("account_id", account.ID))
	return account, nil
}

// Authenticate returns the account for matching credentials. Unknown email and
// wrong password fail identically.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (Account, error) {
	var account Account
	err := d.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		Take(&account).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d.hasher.Verify(password, d.decoyDigest())
		return Account{}, apperrors.New(opAuthenticate, apperrors.KindInvalidCredentials, "invalid credentials")
	}
	if err != nil {
		d.logError(opAuthenticate, "query_failed", err)
		return Account{}, apperrors.Internal(opAuthenticate, "query_failed", err)
	}
	if !d.hasher.Verify(password, account.PasswordDigest) {
		return Account{}, apperrors.New(opAuthenticate, apperrors.KindInvalidCredentials, "invalid credentials")
	}
	return account, nil
}

// CreateWithoutPassword creates an account whose digest belongs to a random,
// undisclosed secret, so it can only be reached through a linked login.
func (d *Directory) CreateWithoutPassword(ctx context.Context, email, displayName string) (Account, error) {
	normalizedEmail := NormalizeEmail(email)
	normalizedName := normalizeDisplayName(displayName)
	if normalizedEmail == "" {
		return Account{}, apperrors.New(opCreateOAuth, apperrors.KindValidation, "email is required")
	}
	if normalizedName == "" {
		return Account{}, apperrors.New(opCreateOAuth, apperrors.KindValidation, "display name is required")
	}

	secret, err := d.idProvider.NewID()
	if err != nil {
		d.logError(opCreateOAuth, "id_generation_failed", err)
		return Account{}, apperrors.Internal(opCreateOAuth, "id_generation_failed", err)
	}
	digest, err := d.hasher.Hash(unusableSecretPrefix + secret)
	if err != nil {
		d.logError(opCreateOAuth, "hash_failed", err)
		return Account{}, apperrors.Internal(opCreateOAuth, "hash_failed", err)
	}
	return d.insert(ctx, opCreateOAuth, normalizedEmail, digest, normalizedName)
}

// FindByEmail looks an account up by its normalized email.
func (d *Directory) FindByEmail(ctx context.Context, email string) (Account, error) {
	return d.findOne(ctx, opFindByEmail, "email = ?", NormalizeEmail(email))
}

// FindByID looks an account up by id.
func (d *Directory) FindByID(ctx context.Context, accountID string) (Account, error) {
	return d.findOne(ctx, opFindByID, "id = ?", strings.TrimSpace(accountID))
}

// AccountExists reports whether an account with the id is stored.
func (d *Directory) AccountExists(ctx context.Context, accountID string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", strings.TrimSpace(accountID)).
		Count(&count).Error; err != nil {
		d.logError(opAccountExists, "query_failed", err, zap.String("account_id", accountID))
		return false, apperrors.Internal(opAccountExists, "query_failed", err)
	}
	return count > 0, nil
}

// ListDiscoverable returns every account except excludeAccountID, newest first.
func (d *Directory) ListDiscoverable(ctx context.Context, excludeAccountID string) ([]Account, error) {
	var accounts []Account
	if err := d.db.WithContext(ctx).
		Where("id <> ?", excludeAccountID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&accounts).Error; err != nil {
		d.logError(opListDiscoverable, "query_failed", err, zap.String("account_id", excludeAccountID))
		return nil, apperrors.Internal(opListDiscoverable, "query_failed", err)
	}
	return accounts, nil
}

func (d *Directory) insert(ctx context.Context, operation, email, digest, displayName string) (Account, error) {
	accountID, err := d.idProvider.NewID()
	if err != nil {
		d.logError(operation, "id_generation_failed", err)
		return Account{}, apperrors.Internal(operation, "id_generation_failed", err)
	}
	account := Account{
		ID:             accountID,
		Email:          email,
		PasswordDigest: digest,
		DisplayName:    displayName,
		CreatedAt:      d.clock().UTC(),
	}
	if err := d.db.WithContext(ctx).Create(&account).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return Account{}, apperrors.Wrap(operation, apperrors.KindDuplicateEmail, err)
		}
		d.logError(operation, "insert_failed", err)
		return Account{}, apperrors.Internal(operation, "insert_failed", err)
	}
	return account, nil
}

func (d *Directory) findOne(ctx context.Context, operation, query string, arg string) (Account, error) {
	var account Account
	err := d.db.WithContext(ctx).Where(query, arg).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, apperrors.New(operation, apperrors.KindNotFound, "account not found")
	}
	if err != nil {
		d.logError(operation, "query_failed", err)
		return Account{}, apperrors.Internal(operation, "query_failed", err)
	}
	return account, nil
}

func (d *Directory) decoyDigest() string {
	d.decoy.once.Do(func() {
		d.decoy.digest = fallbackDecoyDigest
		secret, err := d.idProvider.NewID()
		if err != nil {
			d.logError(opAuthenticate, "decoy_digest_failed", err)
			return
		}
		digest, err := d.hasher.Hash(unusableSecretPrefix + secret)
		if err != nil {
			d.logError(opAuthenticate, "decoy_digest_failed", err)
			return
		}
		d.decoy.digest = digest
	})
	return d.decoy.digest
}

func (d *Directory) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	d.logger.Error("accounts directory error", attrs...)
}
