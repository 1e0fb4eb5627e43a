package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/accounts"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	statusCreated            = "CREATED"
	statusNewUser            = "NEW_USER"
	statusLinkedExistingUser = "LINKED_EXISTING_USER"
	statusExistingLink       = "EXISTING_LINK"
	tokenTypeBearer          = "Bearer"
)

type registerRequestPayload struct {
	Email       string `json:"email" binding:"required,email,max=320"`
	Password    string `json:"password" binding:"required,max=72"`
	DisplayName string `json:"display_name" binding:"required,max=320"`
}

type registerResponsePayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

type loginRequestPayload struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponsePayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type oauthLoginRequestPayload struct {
	Provider       string `json:"provider" binding:"required"`
	ProviderUserID string `json:"provider_user_id" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	DisplayName    string `json:"display_name" binding:"required"`
}

type oauthLoginResponsePayload struct {
	authResponsePayload
	UserID string `json:"user_id"`
	Status string `json:"status"`
}

// providerPayload hands the client a fresh OAuth state. The server keeps no
// copy: the client stores it and must compare it with the state returned on
// the provider callback before posting the login.
type providerPayload struct {
	Provider         string `json:"provider"`
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

type providersResponsePayload struct {
	Providers []providerPayload `json:"providers"`
}

type accountSummaryPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type discoverResponsePayload struct {
	Users []accountSummaryPayload `json:"users"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var request registerRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), accounts.RegisterInput{
		Email:       request.Email,
		Password:    request.Password,
		DisplayName: request.DisplayName,
	})
	if err != nil {
		h.respondError(c, "register", err)
		return
	}

	c.JSON(http.StatusCreated, registerResponsePayload{
		UserID: account.ID,
		Email:  account.Email,
		Status: statusCreated,
	})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}

	account, err := h.accounts.Authenticate(c.Request.Context(), request.Email, request.Password)
	if err != nil {
		h.respondError(c, "login", err)
		return
	}

	response, ok := h.issueToken(c, account)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleOAuthLogin(c *gin.Context) {
	var request oauthLoginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.respondInvalidRequest(c, err)
		return
	}

	provider, err := identity.ParseProvider(request.Provider)
	if err != nil {
		h.respondError(c, "oauth_login", err)
		return
	}

	result, err := h.identity.Link(c.Request.Context(), identity.LinkRequest{
		Provider:       provider,
		ProviderUserID: request.ProviderUserID,
		Email:          request.Email,
		DisplayName:    request.DisplayName,
	})
	if err != nil {
		h.respondError(c, "oauth_login", err)
		return
	}

	token, ok := h.issueToken(c, result.Account)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, oauthLoginResponsePayload{
		authResponsePayload: token,
		UserID:              result.Account.ID,
		Status:              linkStatus(result),
	})
}

// handleListProviders mints one unguessable state per provider per call.
func (h *httpHandler) handleListProviders(c *gin.Context) {
	enabled := h.providers.Enabled()
	response := providersResponsePayload{Providers: make([]providerPayload, 0, len(enabled))}
	for _, provider := range enabled {
		state := uuid.NewString()
		authorizationURL, err := h.providers.AuthorizationURL(provider, state)
		if err != nil {
			h.respondError(c, "list_providers", err)
			return
		}
		response.Providers = append(response.Providers, providerPayload{
			Provider:         provider.String(),
			AuthorizationURL: authorizationURL,
			State:            state,
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleDiscover(c *gin.Context) {
	accountID, ok := accountIDFrom(c)
	if !ok {
		return
	}

	discovered, err := h.accounts.ListDiscoverable(c.Request.Context(), accountID)
	if err != nil {
		h.respondError(c, "discover", err)
		return
	}

	response := discoverResponsePayload{Users: make([]accountSummaryPayload, 0, len(discovered))}
	for _, account := range discovered {
		response.Users = append(response.Users, accountSummaryPayload{
			ID:          account.ID,
			DisplayName: account.DisplayName,
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) issueToken(c *gin.Context, account accounts.Account) (authResponsePayload, bool) {
	token, expiresIn, err := h.tokens.IssueAccountToken(c.Request.Context(), auth.AccountClaims{
		Subject:     account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
	})
	if err != nil {
		h.logger.Error("failed to issue access token", zap.String("account_id", account.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return authResponsePayload{}, false
	}
	return authResponsePayload{
		AccessToken: token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   expiresIn,
	}, true
}

func linkStatus(result identity.LinkResult) string {
	switch {
	case result.Created:
		return statusNewUser
	case result.Linked:
		return statusLinkedExistingUser
	default:
		return statusExistingLink
	}
}
