package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"quilt-athena/internal/athena"
	"quilt-athena/internal/config"
	"quilt-athena/internal/domain"
	"quilt-athena/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
)

// Backends are the remote services a provisioning run talks to.
type Backends struct {
	Queries domain.QueryService
	Checker domain.OutputChecker // nil skips the output preflight
}

// BackendFactory builds Backends for a resolved configuration.
type BackendFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error)

// AWSBackends connects to Athena and S3 using the AWS SDK default chain.
func AWSBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backends, error) {
	awsCfg, err := cfg.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	b := &Backends{
		Queries: athena.NewFromConfig(awsCfg, cfg.AthenaEndpoint,
			athena.WithLogger(logger),
			athena.WithWorkGroup(cfg.WorkGroup),
			athena.WithDatabase(cfg.DataCatalog, cfg.Database),
			athena.WithMaxResultRows(cfg.MaxResultRows),
			athena.WithRateLimit(cfg.APIRequestsPerSecond, cfg.APIBurst),
		),
	}
	if cfg.CheckOutput {
		b.Checker = storage.NewS3CheckerFromConfig(awsCfg, logger)
	}
	return b, nil
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd(AWSBackends)
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		printError(os.Stdout, os.Stderr, output, err)
		return 1
	}
	return 0
}

// rootFlags holds values bound to the persistent flags.
type rootFlags struct {
	templates       string
	catalogFile     string
	prefix          string
	outputBucket    string
	outputSubpath   string
	workGroup       string
	database        string
	region          string
	pollInterval    time.Duration
	maxPollInterval time.Duration
	maxAttempts     int
	waitTimeout     time.Duration
	parallel        bool
	fetchResults    bool
	checkOutput     bool
	logLevel        string
	logFormat       string
	output          string
	profile         string
}

// runEnv is the resolved configuration shared by subcommands.
type runEnv struct {
	cfg      *config.Config
	logger   *slog.Logger
	backends BackendFactory
	prefix   string
}

func newRootCmd(backends BackendFactory) *cobra.Command {
	flags := &rootFlags{}
	env := &runEnv{backends: backends}

	rootCmd := &cobra.Command{
		Use:   "quilt-athena <bucket>",
		Short: "Provision Athena tables and views for a Quilt bucket",
		Long: "Drops and recreates the Athena tables that index a Quilt bucket's package\n" +
			"manifests and named packages, then creates the views layered on them.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags)
			if err != nil {
				return err
			}
			env.cfg = cfg
			env.prefix = flags.prefix
			env.logger = cfg.NewLogger()
			for _, w := range cfg.Warnings {
				env.logger.Warn(w)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, env, args[0])
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.templates, "templates", "", "Directory containing DDL templates (env TEMPLATE_DIR)")
	pf.StringVar(&flags.catalogFile, "catalog", "", "YAML catalog definition; built-in catalog when empty (env CATALOG_FILE)")
	pf.StringVar(&flags.prefix, "prefix", "", "Name prefix for catalog objects that do not set their own")
	pf.StringVar(&flags.outputBucket, "output-bucket", "", "Bucket for query results; defaults to the provisioned bucket (env OUTPUT_BUCKET)")
	pf.StringVar(&flags.outputSubpath, "output-subpath", "", "Key prefix for query results (env OUTPUT_SUBPATH)")
	pf.StringVar(&flags.workGroup, "workgroup", "", "Athena workgroup (env ATHENA_WORKGROUP)")
	pf.StringVar(&flags.database, "database", "", "Athena database (env ATHENA_DATABASE)")
	pf.StringVar(&flags.region, "region", "", "AWS region (env AWS_REGION)")
	pf.DurationVar(&flags.pollInterval, "poll-interval", 0, "Initial delay between status polls (env POLL_INTERVAL)")
	pf.DurationVar(&flags.maxPollInterval, "max-poll-interval", 0, "Upper bound for the poll backoff (env POLL_MAX_INTERVAL)")
	pf.IntVar(&flags.maxAttempts, "max-attempts", 0, "Status polls per statement before giving up (env POLL_MAX_ATTEMPTS)")
	pf.DurationVar(&flags.waitTimeout, "wait-timeout", 0, "Overall wait per statement (env WAIT_TIMEOUT)")
	pf.BoolVar(&flags.parallel, "parallel", false, "Provision independent object families concurrently (env PARALLEL_FAMILIES)")
	pf.BoolVar(&flags.fetchResults, "fetch-results", false, "Fetch results of each create statement (env FETCH_RESULTS)")
	pf.BoolVar(&flags.checkOutput, "check-output", true, "Verify the output bucket before submitting (env CHECK_OUTPUT)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text, json (env LOG_FORMAT)")
	pf.StringVarP(&flags.output, "output", "o", "table", "Output format (table, json)")
	pf.StringVarP(&flags.profile, "profile", "p", "", "Config profile to use")

	rootCmd.AddCommand(newPlanCmd(env))
	rootCmd.AddCommand(newScheduleCmd(env))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// resolveConfig loads env configuration and overlays profile and flag
// values. Precedence is flag > env > profile > default.
func resolveConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	_ = config.LoadDotEnv(".env")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	userCfg, err := LoadUserConfig()
	if err != nil {
		// Config file is optional
		userCfg = &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
	}
	p := userCfg.ActiveProfile(flags.profile)

	overlay(cmd, "templates", flags.templates, "TEMPLATE_DIR", p.Templates, &cfg.TemplateDir)
	overlay(cmd, "catalog", flags.catalogFile, "CATALOG_FILE", p.Catalog, &cfg.CatalogFile)
	overlay(cmd, "output-bucket", flags.outputBucket, "OUTPUT_BUCKET", p.OutputBucket, &cfg.OutputBucket)
	overlay(cmd, "output-subpath", flags.outputSubpath, "OUTPUT_SUBPATH", p.OutputSubpath, &cfg.OutputSubpath)
	overlay(cmd, "workgroup", flags.workGroup, "ATHENA_WORKGROUP", p.WorkGroup, &cfg.WorkGroup)
	overlay(cmd, "database", flags.database, "ATHENA_DATABASE", p.Database, &cfg.Database)
	overlay(cmd, "log-level", flags.logLevel, "LOG_LEVEL", p.LogLevel, &cfg.LogLevel)
	overlay(cmd, "log-format", flags.logFormat, "LOG_FORMAT", p.LogFormat, &cfg.LogFormat)
	if !cmd.Flags().Changed("output") {
		if v := os.Getenv("QUILT_ATHENA_OUTPUT"); v != "" {
			flags.output = v
		} else if p.Output != "" {
			flags.output = p.Output
		}
	}
	if cmd.Flags().Changed("region") {
		cfg.Region = &flags.region
	} else if cfg.Region == nil && p.Region != "" {
		region := p.Region
		cfg.Region = &region
	}

	if cmd.Flags().Changed("poll-interval") {
		cfg.Wait.PollInterval = flags.pollInterval
	}
	if cmd.Flags().Changed("max-poll-interval") {
		cfg.Wait.MaxPollInterval = flags.maxPollInterval
	} else if os.Getenv("POLL_MAX_INTERVAL") == "" && cfg.Wait.MaxPollInterval < cfg.Wait.PollInterval {
		cfg.Wait.MaxPollInterval = cfg.Wait.PollInterval
	}
	if cmd.Flags().Changed("max-attempts") {
		cfg.Wait.MaxPollAttempts = flags.maxAttempts
	}
	if cmd.Flags().Changed("wait-timeout") {
		cfg.Wait.Timeout = flags.waitTimeout
	}
	if cmd.Flags().Changed("parallel") {
		cfg.ParallelFamilies = flags.parallel
	}
	if cmd.Flags().Changed("fetch-results") {
		cfg.FetchResults = flags.fetchResults
	}
	if cmd.Flags().Changed("check-output") {
		cfg.CheckOutput = flags.checkOutput
	}

	if err := validateOutputFormat(flags.output); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overlay applies a string setting: a changed flag wins, then a set env
// variable (already loaded into dst), then the profile value.
func overlay(cmd *cobra.Command, flag, flagVal, envKey, profileVal string, dst *string) {
	switch {
	case cmd.Flags().Changed(flag):
		*dst = flagVal
	case os.Getenv(envKey) != "":
		// already loaded by LoadFromEnv
	case profileVal != "":
		*dst = profileVal
	}
}
