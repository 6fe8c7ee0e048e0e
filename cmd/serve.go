package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/auth"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/config"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/engine"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/server"
	"github.com/cbhirsch/real-estate-agent-chatbot/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if len(cfg.APIKeys) == 0 {
			return errors.New("no API keys configured (set API_KEYS or api_keys in the config file)")
		}

		var signer *auth.Signer
		if cfg.OAuth.SigningSecret != "" {
			signer = auth.NewSigner([]byte(cfg.OAuth.SigningSecret), issuerFor(cfg))
		} else {
			log.Warn().Msg("no token signing secret configured; oauth token surface disabled")
		}

		srv := server.New(server.Options{
			Store:         session.NewMemoryStore(),
			Usage:         session.NewUsageTracker(),
			Verifier:      auth.NewVerifier(cfg.APIKeys, signer),
			Signer:        signer,
			Engine:        engine.NewOpenAI(cfg.Engine.APIKey, cfg.Engine.BaseURL, cfg.Engine.Model, cfg.Engine.SystemPrompt),
			ClientSecret:  cfg.OAuth.ClientSecret,
			Issuer:        issuerFor(cfg),
			EngineTimeout: cfg.Engine.Timeout.Std(),
			Logger:        log.Logger,
		})

		httpSrv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info().Str("addr", cfg.Addr).Msg("starting gateway")
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// issuerFor resolves the advertised issuer URL, falling back to the
// listen address for local setups.
func issuerFor(cfg config.Config) string {
	if cfg.OAuth.Issuer != "" {
		return cfg.OAuth.Issuer
	}
	addr := cfg.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
