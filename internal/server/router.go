package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/accounts"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/apperrors"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/follows"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/identity"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/playlists"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const accountIDContextKey = "cadence_account_id"

var (
	errMissingAccountDirectory = errors.New("account directory dependency required")
	errMissingIdentityLinker   = errors.New("identity linker dependency required")
	errMissingFollowGraph      = errors.New("follow graph dependency required")
	errMissingPlaylistStore    = errors.New("playlist store dependency required")
	errMissingTokenManager     = errors.New("token manager dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

// AccountDirectory registers, authenticates and lists accounts.
type AccountDirectory interface {
	Register(ctx context.Context, input accounts.RegisterInput) (accounts.Account, error)
	Authenticate(ctx context.Context, email, password string) (accounts.Account, error)
	ListDiscoverable(ctx context.Context, excludeAccountID string) ([]accounts.Account, error)
}

// IdentityLinker resolves provider logins onto accounts.
type IdentityLinker interface {
	Link(ctx context.Context, request identity.LinkRequest) (identity.LinkResult, error)
}

// FollowGraph manages follow edges between accounts.
type FollowGraph interface {
	Follow(ctx context.Context, followerID, targetID string) (follows.FollowResult, error)
	Unfollow(ctx context.Context, followerID, targetID string) error
	ListFollowed(ctx context.Context, followerID string) ([]follows.Edge, error)
}

// PlaylistStore exposes owner-scoped playlist operations.
type PlaylistStore interface {
	Create(ctx context.Context, ownerID string, input playlists.CreateInput) (playlists.Details, error)
	List(ctx context.Context, ownerID string) ([]playlists.Details, error)
	Get(ctx context.Context, ownerID, playlistID string) (playlists.Details, error)
	Update(ctx context.Context, ownerID, playlistID string, input playlists.UpdateInput) (playlists.Details, error)
	Delete(ctx context.Context, ownerID, playlistID string) error
}

// TokenManager issues and validates access tokens.
type TokenManager interface {
	IssueAccountToken(ctx context.Context, account auth.AccountClaims) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// ProviderCatalog lists the OAuth providers a client may start a login with.
type ProviderCatalog interface {
	Enabled() []identity.Provider
	AuthorizationURL(provider identity.Provider, state string) (string, error)
}

type Dependencies struct {
	Accounts  AccountDirectory
	Identity  IdentityLinker
	Follows   FollowGraph
	Playlists PlaylistStore
	Tokens    TokenManager
	Providers ProviderCatalog
	Logger    *zap.Logger

	// AuthRequestsPerMinute caps public auth calls per client IP; zero disables the cap.
	AuthRequestsPerMinute int
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Accounts == nil {
		return nil, errMissingAccountDirectory
	}
	if deps.Identity == nil {
		return nil, errMissingIdentityLinker
	}
	if deps.Follows == nil {
		return nil, errMissingFollowGraph
	}
	if deps.Playlists == nil {
		return nil, errMissingPlaylistStore
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenManager
	}

	providers := deps.Providers
	if providers == nil {
		providers = identity.NewCatalog(identity.CatalogConfig{})
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		accounts:  deps.Accounts,
		identity:  deps.Identity,
		follows:   deps.Follows,
		playlists: deps.Playlists,
		tokens:    deps.Tokens,
		providers: providers,
		logger:    logger,
	}

	public := router.Group("/api/v1/public")
	if deps.AuthRequestsPerMinute > 0 {
		public.Use(newClientRateLimiter(deps.AuthRequestsPerMinute, time.Now, logger).middleware)
	}
	public.POST("/users/register", handler.handleRegister)
	public.POST("/auth/login", handler.handleLogin)
	public.POST("/auth/oauth/login", handler.handleOAuthLogin)
	public.GET("/auth/oauth/providers", handler.handleListProviders)

	protected := router.Group("/api/v1/users")
	protected.Use(handler.authorizeRequest)
	protected.GET("/discover", handler.handleDiscover)
	protected.GET("/me/follows", handler.handleListFollows)
	protected.POST("/me/follows/:targetId", handler.handleFollow)
	protected.DELETE("/me/follows/:targetId", handler.handleUnfollow)
	protected.GET("/me/playlists", handler.handleListPlaylists)
	protected.POST("/me/playlists", handler.handleCreatePlaylist)
	protected.GET("/me/playlists/:playlistId", handler.handleGetPlaylist)
	protected.PUT("/me/playlists/:playlistId", handler.handleUpdatePlaylist)
	protected.DELETE("/me/playlists/:playlistId", handler.handleDeletePlaylist)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	accounts  AccountDirectory
	identity  IdentityLinker
	follows   FollowGraph
	playlists PlaylistStore
	tokens    TokenManager
	providers ProviderCatalog
	logger    *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(accountIDContextKey, subject)
	c.Next()
}

// respondError maps a service error onto its HTTP status and {"error": kind} body.
func (h *httpHandler) respondError(c *gin.Context, operation string, err error) {
	kind := apperrors.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": string(kind)})
}

func (h *httpHandler) respondInvalidRequest(c *gin.Context, err error) {
	h.logger.Debug("request binding failed", zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{"error": string(apperrors.KindValidation)})
}

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation, apperrors.KindSelfFollow, apperrors.KindUnsupportedProvider:
		return http.StatusBadRequest
	case apperrors.KindInvalidCredentials:
		return http.StatusUnauthorized
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindDuplicateEmail, apperrors.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func accountIDFrom(c *gin.Context) (string, bool) {
	accountID := c.GetString(accountIDContextKey)
	if accountID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return accountID, true
}
