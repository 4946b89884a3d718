package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"inductionlog/internal/app"
	"inductionlog/internal/db"
	"inductionlog/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "til",
	Short: "Teacher induction log",
	Long: `til keeps teacher induction logs: the cover page, the fixed summer academy
and seminar sections, the repeatable meeting, visit and activity sections, and
the closing signatures.

- Roles: admin edits everything, mentors sign off with their initials, mentees
  fill in the activities. "teacher" is accepted as an alias for mentee.
- Workspace: the .inductionlog directory holding the database and, for the
  file backend, the autosave snapshots.
- Autosave: edits are written to the configured store 3s after the last change.
- Event log: every change is recorded, view it with 'til log events'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	// Values already in the environment win over the workspace .env file.
	_ = godotenv.Load(filepath.Join(viper.GetString("workspace"), ".env"))
	viper.SetEnvPrefix("TIL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("config", "", "config file (default <workspace>/inductionlog.yml)")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor identifier")
	flags.String("role", "", "acting role: admin, mentor or mentee (default from config)")
	flags.Bool("debug", false, "verbose logging")
	for _, name := range []string{"workspace", "config", "json", "actor-id", "role", "debug"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(policyCmd())
	rootCmd.AddCommand(autosaveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(apiKeyCmd())
}

// --- helpers ---

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("debug") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	a, err := app.Open(ctx, viper.GetString("workspace"), app.Options{
		ConfigPath: viper.GetString("config"),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// actingRole resolves --role against the workspace default.
func actingRole(a *app.Context) domain.Role {
	if r := strings.TrimSpace(viper.GetString("role")); r != "" {
		return domain.ParseRole(r)
	}
	return a.Config.DefaultRole()
}

func actorID() string {
	return viper.GetString("actor-id")
}

func printJSONOrTable(v any, render func(table.Writer)) error {
	if viper.GetBool("json") || render == nil {
		return printJSON(v)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	render(tw)
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}
