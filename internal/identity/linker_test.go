package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/accounts"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/database"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/ids"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type linkerFixture struct {
	db        *gorm.DB
	directory *accounts.Directory
	linker    *Linker
}

func newLinkerFixture(t *testing.T) linkerFixture {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "identity.db"), zap.NewNop(), &accounts.Account{}, &OAuthLink{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	clock := func() time.Time {
		return time.Unix(1700000000, 0)
	}
	directory, err := accounts.NewDirectory(accounts.DirectoryConfig{
		Database:   db,
		Hasher:     accounts.NewBcryptHasher(bcrypt.MinCost),
		IDProvider: ids.NewUUIDProvider(),
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("failed to build directory: %v", err)
	}
	linker, err := NewLinker(LinkerConfig{
		Database:   db,
		Accounts:   directory,
		IDProvider: ids.NewUUIDProvider(),
		Clock:      clock,
	})
	if err != nil {
		t.Fatalf("failed to build linker: %v", err)
	}
	return linkerFixture{db: db, directory: directory, linker: linker}
}

func countLinks(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&OAuthLink{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count links: %v", err)
	}
	return count
}

func TestLinkResolvesThroughAllThreeBranches(t *testing.T) {
	fixture := newLinkerFixture(t)
	ctx := context.Background()

	first, err := fixture.linker.Link(ctx, LinkRequest{Provider: ProviderGoogle, ProviderUserID: "p1", Email: "new@x.com", DisplayName: "New"})
	if err != nil {
		t.Fatalf("first link failed: %v", err)
	}
	if !first.Created || !first.Linked {
		t.Fatalf("expected new account and link, got created=%v linked=%v", first.Created, first.Linked)
	}
	if first.Account.Email != "new@x.com" || first.Account.DisplayName != "New" {
		t.Fatalf("unexpected account %#v", first.Account)
	}

	second, err := fixture.linker.Link(ctx, LinkRequest{Provider: ProviderGoogle, ProviderUserID: "p1", Email: "new@x.com", DisplayName: "New"})
	if err != nil {
		t.Fatalf("second link failed: %v", err)
	}
	if second.Created || second.Linked {
		t.Fatalf("expected existing link, got created=%v linked=%v", second.Created, second.Linked)
	}
	if second.Account.ID != first.Account.ID {
		t.Fatalf("expected same account, got %s and %s", first.Account.ID, second.Account.ID)
	}

	third, err := fixture.linker.Link(ctx, LinkRequest{Provider: ProviderGoogle, ProviderUserID: "p2", Email: "New@X.com", DisplayName: "New"})
	if err != nil {
		t.Fatalf("third link failed: %v", err)
	}
	if third.Created || !third.Linked {
		t.Fatalf("expected link to existing account, got created=%v linked=%v", third.Created, third.Linked)
	}
	if third.Account.ID != first.Account.ID {
		t.Fatalf("expected link to the existing account")
	}

	if links := countLinks(t, fixture.db); links != 2 {
		t.Fatalf("expected two links, got %d", links)
	}
}

func TestLinkAttachesToPasswordAccount(t *testing.T) {
	fixture := newLinkerFixture(t)
	ctx := context.Background()

	registered, err := fixture.directory.Register(ctx, accounts.RegisterInput{Email: "fan@example.com", Password: "secret", DisplayName: "Fan"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	result, err := fixture.linker.Link(ctx, LinkRequest{Provider: ProviderSpotify, ProviderUserID: " spotify-9 ", Email: " FAN@example.com", DisplayName: "Someone Else"})
	if err != nil {
		t.Fatalf("link failed: %v", err)
	}
	if result.Created || !result.Linked || result.Account.ID != registered.ID {
		t.Fatalf("unexpected result %#v", result)
	}
	if result.Account.DisplayName != "Fan" {
		t.Fatalf("expected the stored display name to win, got %q", result.Account.DisplayName)
	}

	var link OAuthLink
	if err := fixture.db.Where("provider = ?", ProviderSpotify).Take(&link).Error; err != nil {
		t.Fatalf("failed to load link: %v", err)
	}
	if link.ProviderUserID != "spotify-9" || link.EmailSnapshot != "fan@example.com" {
		t.Fatalf("unexpected link %#v", link)
	}

	if _, err := fixture.directory.Authenticate(ctx, "fan@example.com", "secret"); err != nil {
		t.Fatalf("expected password login to keep working: %v", err)
	}
}

func TestLinkSeparatesProviders(t *testing.T) {
	fixture := newLinkerFixture(t)
	ctx := context.Background()

	google, err := fixture.linker.Link(ctx, LinkRequest{Provider: ProviderGoogle, ProviderUserID: "same", Email: "one@example.com", DisplayName: "One"})
	if err != nil {
		t.Fatalf("google link failed: %v", err)
	}
	github, err := fixture.linker.Link(ctx, LinkRequest{Provider: ProviderGitHub, ProviderUserID: "same", Email: "two@example.com", DisplayName: "Two"})
	if err != nil {
		t.Fatalf("github link failed: %v", err)
	}
	if google.Account.ID == github.Account.ID {
		t.Fatalf("expected distinct accounts per provider subject")
	}
	if !github.Created {
		t.Fatalf("expected the github login to create an account")
	}
}

func TestLinkRejectsInvalidRequests(t *testing.T) {
	fixture := newLinkerFixture(t)
	ctx := context.Background()

	if _, err := fixture.linker.Link(ctx, LinkRequest{Provider: "myspace", ProviderUserID: "p", Email: "a@b.com", DisplayName: "A"}); !errors.Is(err, apperrors.ErrUnsupportedProvider) {
		t.Fatalf("expected unsupported provider, got %v", err)
	}
	if _, err := fixture.linker.Link(ctx, LinkRequest{Provider: ProviderGoogle, ProviderUserID: "  ", Email: "a@b.com", DisplayName: "A"}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error for blank provider user id, got %v", err)
	}
	if _, err := fixture.linker.Link(ctx, LinkRequest{Provider: ProviderGoogle, ProviderUserID: "p", Email: " ", DisplayName: "A"}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error for blank email, got %v", err)
	}
	if countLinks(t, fixture.db) != 0 {
		t.Fatalf("expected no links after rejected requests")
	}
}

func TestLinkRollsBackAccountWhenLinkInsertFails(t *testing.T) {
	fixture := newLinkerFixture(t)
	ctx := context.Background()

	injected := errors.New("link storage offline")
	err := fixture.db.Callback().Create().Before("gorm:create").Register("test:fail_oauth_links", func(tx *gorm.DB) {
		if tx.Statement.Table == "oauth_links" {
			_ = tx.AddError(injected)
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}

	_, err = fixture.linker.Link(ctx, LinkRequest{Provider: ProviderApple, ProviderUserID: "apple-1", Email: "orphan@example.com", DisplayName: "Orphan"})
	if err == nil {
		t.Fatalf("expected link to fail")
	}
	if !errors.Is(err, injected) {
		t.Fatalf("expected injected cause, got %v", err)
	}
	if _, err := fixture.directory.FindByEmail(ctx, "orphan@example.com"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected account creation to be rolled back, got %v", err)
	}
}

func TestParseProvider(t *testing.T) {
	provider, err := ParseProvider(" GitHub ")
	if err != nil || provider != ProviderGitHub {
		t.Fatalf("unexpected parse result %q, %v", provider, err)
	}
	if _, err := ParseProvider("friendster"); !errors.Is(err, apperrors.ErrUnsupportedProvider) {
		t.Fatalf("expected unsupported provider, got %v", err)
	}
}

func failCreatesOn(t *testing.T, db *gorm.DB, name, table string) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register(name, func(tx *gorm.DB) {
		if tx.Statement.Table == table {
			_ = tx.AddError(gorm.ErrDuplicatedKey)
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}
}

func TestLinkMapsLostLinkRaceToConflict(t *testing.T) {
	fixture := newLinkerFixture(t)
	ctx := context.Background()

	existing, err := fixture.directory.Register(ctx, accounts.RegisterInput{Email: "taken@example.com", Password: "secret", DisplayName: "Taken"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	failCreatesOn(t, fixture.db, "test:duplicate_oauth_link", "oauth_links")

	_, err = fixture.linker.Link(ctx, LinkRequest{Provider: ProviderGitHub, ProviderUserID: "gh-1", Email: "taken@example.com", DisplayName: "Taken"})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict when attaching to an existing account, got %v", err)
	}

	_, err = fixture.linker.Link(ctx, LinkRequest{Provider: ProviderGitHub, ProviderUserID: "gh-2", Email: "fresh@example.com", DisplayName: "Fresh"})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict when creating a new account, got %v", err)
	}
	if _, err := fixture.directory.FindByEmail(ctx, "fresh@example.com"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected no orphan account to survive, got %v", err)
	}
	if account, err := fixture.directory.FindByID(ctx, existing.ID); err != nil || account.Email != "taken@example.com" {
		t.Fatalf("expected the existing account to be untouched, got %#v, %v", account, err)
	}
	if countLinks(t, fixture.db) != 0 {
		t.Fatalf("expected no links after conflicts")
	}
}

func TestLinkMapsLostAccountRaceToConflict(t *testing.T) {
	fixture := newLinkerFixture(t)
	ctx := context.Background()

	failCreatesOn(t, fixture.db, "test:duplicate_account", "accounts")

	_, err := fixture.linker.Link(ctx, LinkRequest{Provider: ProviderSpotify, ProviderUserID: "sp-1", Email: "racer@example.com", DisplayName: "Racer"})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if countLinks(t, fixture.db) != 0 {
		t.Fatalf("expected no link to be stored")
	}
}
