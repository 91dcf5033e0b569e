package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flatconnect/internal/app"
	"flatconnect/internal/logging"
	"flatconnect/internal/workflow"
)

var logger = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "fc",
	Short: "FlatConnect complaint client",
	Long: `fc files and tracks apartment-society complaints against a FlatConnect backend.
- Residents file complaints (fc file) and follow them (fc complaints mine).
- Admins and secretaries assign new complaints to workers (fc assign).
- Workers start assigned tasks and resolve them with photo evidence (fc start, fc complete).
- fc dev-server runs a local backend for demos and tests.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if err := loadDotEnv(workspace); err != nil {
			return err
		}
		l, err := logging.New(logging.Options{
			Level:  viper.GetString("log-level"),
			Format: viper.GetString("log-format"),
			Out:    os.Stderr,
		})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Debug().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, "error:", errorText(err))
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FLATCONNECT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("workspace", "w", ".", "workspace directory")
	pf.String("base-url", "", "backend base URL (overrides flatconnect.yml)")
	pf.Duration("timeout", 0, "per-request timeout (0 keeps the transport default)")
	pf.Bool("json", false, "output JSON")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")
	for _, name := range []string{"workspace", "base-url", "timeout", "json", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(signupCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(googleURLCmd())
	rootCmd.AddCommand(useCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(complaintsCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(assignmentsCmd())
	rootCmd.AddCommand(workersCmd())
	rootCmd.AddCommand(fileCmd())
	rootCmd.AddCommand(assignCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(completeCmd())
	rootCmd.AddCommand(advanceCmd())
	rootCmd.AddCommand(photosCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(devServerCmd())
}

// loadDotEnv reads <workspace>/.env without overriding the real environment.
func loadDotEnv(workspace string) error {
	path := filepath.Join(workspace, ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(app.Options{
		Workspace: viper.GetString("workspace"),
		BaseURL:   viper.GetString("base-url"),
		Timeout:   viper.GetDuration("timeout"),
		Log:       logger,
	})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// errorText prefers the alert text users know; unclassified failures keep
// their own message.
func errorText(err error) string {
	msg := workflow.Message(err)
	if msg == "An unexpected error occurred." {
		return err.Error()
	}
	return msg
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func asJSON() bool { return viper.GetBool("json") }

// prompt reads one line from stdin after printing label.
func prompt(in io.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func setEnvValue(path, key, value string) error {
	env := map[string]string{}
	if existing, err := godotenv.Read(path); err == nil {
		env = existing
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	env[key] = value
	return godotenv.Write(env, path)
}
