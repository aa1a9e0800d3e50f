// cmd/validate/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/David-Botos/data-contract/pkg/config"
	"github.com/David-Botos/data-contract/pkg/connector"
	"github.com/David-Botos/data-contract/pkg/contract"
	"github.com/David-Botos/data-contract/pkg/publisher"
	"github.com/David-Botos/data-contract/pkg/snapshot"
	"github.com/David-Botos/data-contract/pkg/validator"
)

// Exit codes
const (
	exitOK     = 0 // every rule passed
	exitFailed = 1 // data quality failures
	exitError  = 2 // configuration errors or an aborted run
)

var exitCode = exitOK

var (
	contractPath string
	outputPath   string
	workerCount  int
	sampleLimit  int
	timeout      time.Duration
	tables       []string
	dryRun       bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate warehouse tables against their data contracts",
	Long: `validate loads declarative data contracts, snapshots the covered
tables from Snowflake and checks every rule: not_null, relationships,
accepted_values, type and length_between.

The process exits 0 when every rule passes, 1 when any rule found
failing rows and 2 when a contract could not be checked at all.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&contractPath, "contracts", "c", "", "path to the contract file (defaults to CONTRACT_FILE)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the JSON report to this file")
	rootCmd.Flags().IntVarP(&workerCount, "workers", "w", 0, "number of validation workers (0 = auto)")
	rootCmd.Flags().IntVar(&sampleLimit, "sample-limit", 0, "failing keys kept per rule (0 = default)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "overall run timeout (0 = none)")
	rootCmd.Flags().StringSliceVarP(&tables, "tables", "t", nil, "validate only these contract tables")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "check connectivity and table existence without validating")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		exitCode = exitError
	}
	os.Exit(exitCode)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Flags override environment configuration
	if contractPath != "" {
		cfg.ContractPath = contractPath
	}
	if len(tables) > 0 {
		cfg.Tables = tables
	}
	if workerCount > 0 {
		cfg.WorkerPoolSize = workerCount
	}
	if sampleLimit > 0 {
		cfg.SampleLimit = sampleLimit
	}

	logger, err := buildLogger(cfg.LogLevel, cfg.LogFormat, verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	set, err := contract.Load(cfg.ContractPath)
	if err != nil {
		return fmt.Errorf("failed to load contracts: %w", err)
	}
	if len(cfg.Tables) > 0 {
		set, err = set.FilterTables(cfg.Tables)
		if err != nil {
			return fmt.Errorf("failed to filter contract tables: %w", err)
		}
	}
	logger.Info("Loaded contracts",
		zap.String("path", cfg.ContractPath),
		zap.Int("tables", len(set.Tables)),
		zap.Int("rules", set.RuleCount()))

	factory := connector.NewConnectorFactory(cfg, logger)
	snowConn, pgConn, err := factory.CreateAllConnectors(ctx)
	if err != nil {
		return fmt.Errorf("failed to create database connectors: %w", err)
	}
	defer snowConn.Close()
	if pgConn != nil {
		defer pgConn.Close()
	}

	reader := snapshot.NewSQLReader(snowConn.DB(), "snowflake", cfg.Snowflake.Schema, logger).
		WithBatchSize(cfg.BatchSize)

	if dryRun {
		return runDryRun(ctx, reader, set, logger)
	}

	v := validator.NewValidator(reader, logger).
		WithSampleLimit(cfg.SampleLimit).
		WithRetry(cfg.RetryAttempts, cfg.RetryDelay)
	if cfg.WorkerPoolSize > 0 {
		v = v.WithWorkerCount(cfg.WorkerPoolSize)
	}

	report, err := v.Validate(ctx, set)
	if err != nil {
		return fmt.Errorf("validation aborted: %w", err)
	}

	if err := publishReport(ctx, report, pgConn, logger); err != nil {
		logger.Error("Failed to publish report", zap.Error(err))
	}

	fmt.Println(report.Summary())

	switch {
	case report.HasConfigurationErrors():
		exitCode = exitError
	case !report.Passed():
		exitCode = exitFailed
	}
	return nil
}

// runDryRun checks that every table the contracts touch is reachable
// without reading any rows
func runDryRun(ctx context.Context, reader *snapshot.SQLReader, set *contract.ContractSet, logger *zap.Logger) error {
	available, err := reader.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}
	logger.Info("Connected to source", zap.Int("availableTables", len(available)))

	seen := make(map[string]bool)
	missing := 0
	for _, name := range append(set.TableNames(), set.ReferencedTables()...) {
		if seen[name] {
			continue
		}
		seen[name] = true

		exists, err := reader.HasTable(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to check table %s: %w", name, err)
		}
		if exists {
			logger.Info("Table present", zap.String("table", name))
		} else {
			logger.Warn("Table missing", zap.String("table", name))
			missing++
		}
	}

	if missing > 0 {
		return fmt.Errorf("%d contract tables are missing from the source", missing)
	}
	fmt.Println("Dry run passed: all contract tables are present")
	return nil
}

// publishReport sends the report to the log, plus the optional file and
// PostgreSQL sinks
func publishReport(ctx context.Context, report *validator.ValidationReport, pgConn *connector.PostgresConnector, logger *zap.Logger) error {
	logPub, err := publisher.NewLogPublisher(logger)
	if err != nil {
		return err
	}
	publishers := []publisher.Publisher{logPub}

	if outputPath != "" {
		filePub, err := publisher.NewFilePublisher(outputPath, logger)
		if err != nil {
			return err
		}
		publishers = append(publishers, filePub)
	}

	if pgConn != nil {
		pgPub, err := publisher.NewPostgresPublisher(pgConn.DB(), logger)
		if err != nil {
			return err
		}
		publishers = append(publishers, pgPub)
	}

	return publisher.NewMultiPublisher(publishers...).Publish(ctx, report)
}

// buildLogger builds a zap logger honoring LOG_LEVEL and LOG_FORMAT.
// The verbose flag forces debug level regardless of configuration.
func buildLogger(level, format string, verbose bool) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		zapLevel = zapcore.InfoLevel
	}
	if verbose {
		zapLevel = zapcore.DebugLevel
	}

	var zapCfg zap.Config
	if format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
