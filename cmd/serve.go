package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/admaesmo/AidDiag/internal/api"
	"github.com/admaesmo/AidDiag/internal/audit"
	"github.com/admaesmo/AidDiag/internal/auth"
	"github.com/admaesmo/AidDiag/internal/config"
	"github.com/admaesmo/AidDiag/internal/core"
	"github.com/admaesmo/AidDiag/internal/keys"
	"github.com/admaesmo/AidDiag/internal/service"
	"github.com/admaesmo/AidDiag/internal/store"
	"github.com/admaesmo/AidDiag/internal/store/postgres"
	"github.com/admaesmo/AidDiag/internal/token"
)

var cfgFile string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the AidDiag server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadServeConfig()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		log.Info().Msg("Loading key material...")
		material, err := keys.LoadOrGenerate(cfg.JWT.PrivateKeyPath, cfg.JWT.KID)
		if err != nil {
			return fmt.Errorf("loading key material: %w", err)
		}

		codec := token.NewCodec(material)
		validator := auth.NewValidator(cfg.JWT.Issuer, cfg.JWT.Audience)

		auditor, err := audit.Build(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			_ = auditor.Close()
		}()

		log.Info().Msgf("Initializing %s store...", cfg.Store.Type)
		stores, cleanup, err := buildStores(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("building store: %w", err)
		}
		defer cleanup()

		authenticator := auth.NewAuthenticator(
			stores.principals, codec, auditor,
			cfg.JWT.Issuer, cfg.JWT.Audience,
			cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL,
		)
		refreshFlow := auth.NewRefreshFlow(stores.principals, codec, validator, authenticator, auditor)

		var oidcVerifier *auth.OIDCVerifier
		if cfg.OIDC != nil {
			log.Info().Msgf("Initializing OIDC verifier for %s...", cfg.OIDC.IssuerURL)
			oidcVerifier, err = auth.NewOIDCVerifier(cmd.Context(), cfg.OIDC.IssuerURL, cfg.OIDC.ClientID)
			if err != nil {
				return fmt.Errorf("initializing oidc verifier: %w", err)
			}
		}

		intake := service.NewIntakeService(stores.intake, stores.cases, stores.audits)

		srv := api.NewServer(
			material.KeySet(), codec, validator,
			authenticator, refreshFlow, oidcVerifier,
			stores.principals, intake, auditor,
			cfg.Tenant.Name,
		)

		server := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: srv.Routes(),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", cfg.Server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func loadServeConfig() (*config.Config, error) {
	if cfgFile == "" {
		log.Warn().Msg("no config file given, using built-in defaults")
		return config.Default(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// storeSet bundles the four persistence ports one backend serves.
type storeSet struct {
	principals core.PrincipalStore
	intake     core.IntakeStore
	cases      core.CaseStore
	audits     core.AuditStore
}

func buildStores(ctx context.Context, cfg *config.Config) (*storeSet, func(), error) {
	switch cfg.Store.Type {
	case "memory":
		mem := store.NewMemory()
		return &storeSet{
			principals: mem,
			intake:     mem,
			cases:      mem,
			audits:     mem,
		}, func() {}, nil
	case "postgres":
		conf, err := postgres.FromStoreConfig(cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		pg, err := postgres.Connect(ctx, conf)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrating schema: %w", err)
		}
		return &storeSet{
			principals: pg,
			intake:     pg,
			cases:      pg,
			audits:     pg,
		}, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Path to the server configuration file")
	serveCmd.Flags().String("addr", "", "address to listen on (overrides config)")
}
