package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/cadence/backend/internal/accounts"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/config"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/database"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/follows"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/identity"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/ids"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/playlists"
	"github.com/MarcoPoloResearchLab/cadence/backend/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cadence-api",
		Short: "Cadence social music backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().Int("auth-rate-per-minute", defaults.GetInt("http.auth_rate_per_minute"), "Public auth requests allowed per client IP per minute (0 disables)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Access token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	cmd.PersistentFlags().String("signing-secret", "", "Access token signing secret (overrides env)")
	cmd.PersistentFlags().String("oauth-redirect-url", defaults.GetString("oauth.redirect_url"), "Base OAuth redirect URL")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.auth_rate_per_minute", "auth-rate-per-minute")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.format", "log-format")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "oauth.redirect_url", "oauth-redirect-url")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	gin.SetMode(gin.ReleaseMode)

	db, err := database.OpenSQLite(
		appConfig.DatabasePath,
		logger,
		&accounts.Account{},
		&identity.OAuthLink{},
		&follows.Edge{},
		&playlists.Playlist{},
		&playlists.Track{},
	)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	idProvider := ids.NewUUIDProvider()

	directory, err := accounts.NewDirectory(accounts.DirectoryConfig{
		Database:   db,
		Hasher:     accounts.NewBcryptHasher(appConfig.BcryptCost),
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	linker, err := identity.NewLinker(identity.LinkerConfig{
		Database:   db,
		Accounts:   directory,
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	graph, err := follows.NewGraph(follows.GraphConfig{
		Database:   db,
		Accounts:   directory,
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	playlistService, err := playlists.NewService(playlists.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	clients := make(map[identity.Provider]identity.ClientConfig, len(appConfig.OAuthClients))
	for name, client := range appConfig.OAuthClients {
		provider, err := identity.ParseProvider(name)
		if err != nil {
			return err
		}
		clients[provider] = identity.ClientConfig{
			ClientID:     client.ClientID,
			ClientSecret: client.ClientSecret,
		}
	}
	catalog := identity.NewCatalog(identity.CatalogConfig{
		RedirectURL: appConfig.OAuthRedirectURL,
		Clients:     clients,
	})

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:  directory,
		Identity:  linker,
		Follows:   graph,
		Playlists: playlistService,
		Tokens:    tokenManager,
		Providers: catalog,
		Logger:    logger,

		AuthRequestsPerMinute: appConfig.AuthRatePerMin,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.Int("oauth_providers", len(catalog.Enabled())),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
