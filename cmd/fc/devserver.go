package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flatconnect/internal/config"
	"flatconnect/internal/db"
	"flatconnect/internal/engine"
	"flatconnect/internal/engine/auth"
	"flatconnect/internal/migrate"
	"flatconnect/internal/server"
)

func devServerCmd() *cobra.Command {
	var addr string
	var seed bool
	var tokenTTL time.Duration
	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Run a local FlatConnect backend",
		Long: `dev-server serves the FlatConnect API from a SQLite database in the workspace.
Uploaded images are stored under the workspace media directory and served at /media/.
FLATCONNECT_JWT_SECRET signs session tokens; without it a random secret is used and
tokens do not survive a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOrDefault(workspace)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.DevServer.Addr
			}
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace, Name: db.DevServerDB})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn, migrate.DevServer); err != nil {
				return err
			}
			secret := []byte(os.Getenv("FLATCONNECT_JWT_SECRET"))
			if len(secret) == 0 {
				secret = make([]byte, 32)
				if _, err := rand.Read(secret); err != nil {
					return err
				}
				logger.Warn().Msg("FLATCONNECT_JWT_SECRET not set; using an ephemeral secret")
			}
			e := engine.New(conn, auth.Tokens{Secret: secret, TTL: tokenTTL}, db.MediaDir(workspace), logger)
			if seed {
				if err := e.Seed(cmd.Context()); err != nil {
					return err
				}
				logger.Info().Str("password", engine.SeedPassword).Msg("seeded demo users")
			}
			handler, err := server.New(server.Config{
				Engine: e,
				Google: server.GoogleConfig{
					ClientID:    cfg.DevServer.GoogleClientID,
					RedirectURI: cfg.DevServer.GoogleRedirectURI,
				},
				Log: logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving FlatConnect API on http://%s (OpenAPI at /openapi.json)\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from flatconnect.yml)")
	cmd.Flags().BoolVar(&seed, "seed", false, "create the demo accounts")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 0, "session token lifetime (0 never expires)")
	return cmd
}
