package follows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/database"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opFollow       = "follows.follow"
	opUnfollow     = "follows.unfollow"
	opListFollowed = "follows.list_followed"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingAccounts   = errors.New("account checker is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// AccountChecker reports whether an account exists.
type AccountChecker interface {
	AccountExists(ctx context.Context, accountID string) (bool, error)
}

// GraphConfig describes the dependencies of the follow graph.
type GraphConfig struct {
	Database   *gorm.DB
	Accounts   AccountChecker
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Graph stores follow edges between accounts.
type Graph struct {
	db         *gorm.DB
	accounts   AccountChecker
	idProvider ids.Provider
	clock      func() time.Time
	logger     *zap.Logger
}

// NewGraph constructs a Graph.
func NewGraph(cfg GraphConfig) (*Graph, error) {
	if cfg.Database == nil {
		return nil, apperrors.Internal("follows.new", "missing_database", errMissingDatabase)
	}
	if cfg.Accounts == nil {
		return nil, apperrors.Internal("follows.new", "missing_accounts", errMissingAccounts)
	}
	if cfg.IDProvider == nil {
		return nil, apperrors.Internal("follows.new", "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{
		db:         cfg.Database,
		accounts:   cfg.Accounts,
		idProvider: cfg.IDProvider,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Follow adds the follower→target edge. Repeating it reports Created=false.
func (g *Graph) Follow(ctx context.Context, followerID, targetID string) (FollowResult, error) {
	followerID = strings.TrimSpace(followerID)
	targetID = strings.TrimSpace(targetID)
	if followerID == targetID {
		return FollowResult{}, apperrors.New(opFollow, apperrors.KindSelfFollow, "accounts cannot follow themselves")
	}
	if followerID == "" || targetID == "" {
		return FollowResult{}, apperrors.New(opFollow, apperrors.KindValidation, "follower and target are required")
	}

	exists, err := g.accounts.AccountExists(ctx, targetID)
	if err != nil {
		return FollowResult{}, err
	}
	if !exists {
		return FollowResult{}, apperrors.New(opFollow, apperrors.KindNotFound, "target account not found")
	}

	var result FollowResult
	txErr := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Edge
		err := tx.Where("follower_account_id = ? AND target_account_id = ?", followerID, targetID).
			Take(&existing).
			Error
		if err == nil {
			result = FollowResult{Edge: existing, Created: false}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			g.logError(opFollow, "edge_select_failed", err, zap.String("follower_id", followerID))
			return apperrors.Internal(opFollow, "edge_select_failed", err)
		}

		edgeID, err := g.idProvider.NewID()
		if err != nil {
			g.logError(opFollow, "id_generation_failed", err)
			return apperrors.Internal(opFollow, "id_generation_failed", err)
		}
		edge := Edge{
			ID:         edgeID,
			FollowerID: followerID,
			TargetID:   targetID,
			CreatedAt:  g.clock().UTC(),
		}
		if err := tx.Create(&edge).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperrors.Wrap(opFollow, apperrors.KindConflict, err)
			}
			g.logError(opFollow, "edge_insert_failed", err, zap.String("follower_id", followerID))
			return apperrors.Internal(opFollow, "edge_insert_failed", err)
		}
		result = FollowResult{Edge: edge, Created: true}
		return nil
	})
	if txErr != nil {
		return FollowResult{}, txErr
	}
	return result, nil
}

// Unfollow removes the edge if present.
func (g *Graph) Unfollow(ctx context.Context, followerID, targetID string) error {
	err := g.db.WithContext(ctx).
		Where("follower_account_id = ? AND target_account_id = ?", strings.TrimSpace(followerID), strings.TrimSpace(targetID)).
		Delete(&Edge{}).
		Error
	if err != nil {
		g.logError(opUnfollow, "edge_delete_failed", err, zap.String("follower_id", followerID))
		return apperrors.Internal(opUnfollow, "edge_delete_failed", err)
	}
	return nil
}

// ListFollowed returns the follower's edges, most recent first.
func (g *Graph) ListFollowed(ctx context.Context, followerID string) ([]Edge, error) {
	var edges []Edge
	if err := g.db.WithContext(ctx).
		Where("follower_account_id = ?", strings.TrimSpace(followerID)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&edges).Error; err != nil {
		g.logError(opListFollowed, "query_failed", err, zap.String("follower_id", followerID))
		return nil, apperrors.Internal(opListFollowed, "query_failed", err)
	}
	return edges, nil
}

func (g *Graph) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	g.logger.Error("follow graph error", attrs...)
}
