/*
main.go - Application entry point

PURPOSE:
  Starts the hall operations server and offers offline tools for ops
  schema documents. Handles configuration, dependency injection and
  graceful shutdown.

COMMANDS:
  serve                 Run the HTTP API
  validate <file>       Report schema issues and constraint violations
  compile <file>        Print the derived pricing and schedule documents
  resolve <file>        Print the effective calendar for --from..--to
                        (--holidays adds the default holiday closures)
  programs list|add     Manage the program catalog used by schedule publish

STARTUP SEQUENCE (serve):
  1. Load config (YAML + .env + environment expansion)
  2. Open the SQL store and migrate
  3. Optionally wrap settings in the Redis read-through cache
  4. Build workflows and the shift service
  5. Configure HTTP router and start with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close Redis and database connections

EXAMPLES:
  ./server serve -c config.yaml
  ./server serve --db=":memory:" --port=3000
  ./server validate hall.yaml
  ./server resolve hall.yaml --from 2025-03-01 --to 2025-03-07

SEE ALSO:
  - config/config.go: Configuration file format
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/hallops/api"
	"github.com/warp/hallops/config"
	"github.com/warp/hallops/factory"
	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/metrics"
	"github.com/warp/hallops/opsschema"
	"github.com/warp/hallops/shift"
	"github.com/warp/hallops/store/redis"
	"github.com/warp/hallops/store/sqlite"
	"github.com/warp/hallops/workflow"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Bingo hall operations back office",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (defaults apply when empty)")

	rootCmd.AddCommand(serveCmd(), validateCmd(), compileCmd(), resolveCmd(), programsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// =============================================================================
// SERVE
// =============================================================================

func serveCmd() *cobra.Command {
	var port int
	var dsn string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.DSN = dsn
			}
			return serve(cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVar(&dsn, "db", "", "Database DSN (\":memory:\" for an in-memory SQLite database)")
	return cmd
}

func serve(cfg *config.Config) error {
	logger := newLogger(cfg.Log)

	tolerance, err := cfg.VarianceTolerance()
	if err != nil {
		return err
	}

	// Initialize store
	db, err := sqlite.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	var settings generic.TxSettingsStore = db
	if cfg.Redis.Enabled {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("address", cfg.Redis.Address).Msg("redis unreachable; cache will fall through")
		}
		cancel()
		settings = redis.NewSettingsCache(db, rdb, cfg.CacheTTL(), logger)
	}

	if cfg.Metrics.Enabled {
		metrics.Register()
	}

	handler := api.NewHandler(api.Services{
		OpsSchema: workflow.NewOpsSchema(settings, logger),
		Versions:  workflow.NewVersions(db, db, logger),
		Settings:  workflow.NewSettings(settings, logger),
		Shifts:    shift.NewService(db, logger, shift.WithTolerance(tolerance)),
		Documents: settings,
		Ping:      db.Ping,
	}, logger)

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Server.Port).
			Str("driver", cfg.Database.Driver).
			Bool("redis", cfg.Redis.Enabled).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// =============================================================================
// OFFLINE SCHEMA TOOLS
// =============================================================================

func readSchema(path string) (*opsschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return factory.ParseOpsSchema(data)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an ops schema document (JSON or YAML)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchema(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			issues := opsschema.Validate(s)
			for _, i := range issues {
				fmt.Fprintf(out, "ISSUE  %-45s %-22s %s\n", i.Path, i.Code, i.Message)
			}
			violations := opsschema.CheckConstraints(s)
			for _, v := range violations {
				fmt.Fprintf(out, "%-6s %-45s %-22s %s\n", v.Severity, v.Path, v.ConstraintID, v.Message)
			}
			score := opsschema.Completeness(s, violations)
			fmt.Fprintf(out, "completeness: %d%%\n", score.Score)
			if len(issues) > 0 {
				return fmt.Errorf("%d issue(s)", len(issues))
			}
			return nil
		},
	}
}

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file>",
		Short: "Print the pricing and schedule documents derived from an ops schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchema(args[0])
			if err != nil {
				return err
			}
			compiled, err := opsschema.Compile(s, opsschema.CompileOptions{})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), compiled)
		},
	}
}

func resolveCmd() *cobra.Command {
	var from, to string
	var holidays bool

	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Print the effective assignment of every date in a range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchema(args[0])
			if err != nil {
				return err
			}
			if from == "" {
				from = s.Calendar.Range.Start
			}
			if to == "" {
				to = s.Calendar.Range.End
			}
			if holidays {
				if _, err := opsschema.ApplyHolidays(&s.Calendar, opsschema.DefaultHolidayRules()); err != nil {
					return err
				}
			}
			days, err := opsschema.ResolveRange(&s.Calendar, from, to)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range days {
				fmt.Fprintf(out, "%s %s %-6s %-14s %s\n", d.Date, d.Weekday, d.Status, d.ProfileID, d.Source)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First date (YYYY-MM-DD); defaults to the calendar range start")
	cmd.Flags().StringVar(&to, "to", "", "Last date (YYYY-MM-DD); defaults to the calendar range end")
	cmd.Flags().BoolVar(&holidays, "holidays", false, "Apply the default holiday closures before resolving")
	return cmd
}

// =============================================================================
// PROGRAMS
// =============================================================================

func programsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "programs",
		Short: "Manage the program catalog",
	}

	openStore := func() (*sqlite.Store, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		return sqlite.Open(cfg.Database.Driver, cfg.Database.DSN)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			programs, err := db.ListPrograms(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range programs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", p.Slug, p.Name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <slug> <name>",
		Short: "Add or rename a program",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			return db.SaveProgram(cmd.Context(), generic.Program{Slug: args[0], Name: args[1]})
		},
	})

	return cmd
}
