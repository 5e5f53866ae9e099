package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "config",
		Short:             "Manage CLI configuration profiles",
		PersistentPreRunE: skipConfig,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetProfileCmd())
	cmd.AddCommand(newConfigUseProfileCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No configuration found at %s\n", ConfigPath())
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

// profileFields maps set-profile flag names to the profile field they set.
func profileFields(p *Profile) map[string]*string {
	return map[string]*string{
		"region":         &p.Region,
		"workgroup":      &p.WorkGroup,
		"database":       &p.Database,
		"output-bucket":  &p.OutputBucket,
		"output-subpath": &p.OutputSubpath,
		"templates":      &p.Templates,
		"catalog":        &p.Catalog,
		"log-level":      &p.LogLevel,
		"log-format":     &p.LogFormat,
		"default-output": &p.Output,
	}
}

func newConfigSetProfileCmd() *cobra.Command {
	var (
		name   string
		values Profile
	)

	cmd := &cobra.Command{
		Use:   "set-profile",
		Short: "Create or update a configuration profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if cmd.Flags().Changed("default-output") {
				if err := validateOutputFormat(values.Output); err != nil {
					return err
				}
			}

			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = &UserConfig{
					CurrentProfile: "default",
					Profiles:       map[string]Profile{},
				}
			}

			p := cfg.Profiles[name]
			dst := profileFields(&p)
			for flag, src := range profileFields(&values) {
				if cmd.Flags().Changed(flag) {
					*dst[flag] = *src
				}
			}
			cfg.Profiles[name] = p

			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"status":  "ok",
					"profile": name,
					"path":    ConfigPath(),
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %q saved to %s\n", name, ConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Profile name (required)")
	cmd.Flags().StringVar(&values.Region, "region", "", "AWS region")
	cmd.Flags().StringVar(&values.WorkGroup, "workgroup", "", "Athena workgroup")
	cmd.Flags().StringVar(&values.Database, "database", "", "Athena database")
	cmd.Flags().StringVar(&values.OutputBucket, "output-bucket", "", "Bucket for query results")
	cmd.Flags().StringVar(&values.OutputSubpath, "output-subpath", "", "Key prefix for query results")
	cmd.Flags().StringVar(&values.Templates, "templates", "", "DDL template directory")
	cmd.Flags().StringVar(&values.Catalog, "catalog", "", "Catalog definition file")
	cmd.Flags().StringVar(&values.LogLevel, "log-level", "", "Log level")
	cmd.Flags().StringVar(&values.LogFormat, "log-format", "", "Log format")
	cmd.Flags().StringVar(&values.Output, "default-output", "", "Default output format")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newConfigUseProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Set the active configuration profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return fmt.Errorf("no config found: %w", err)
			}
			name := args[0]
			if _, ok := cfg.Profiles[name]; !ok {
				return fmt.Errorf("profile %q not found", name)
			}
			cfg.CurrentProfile = name
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"status":         "ok",
					"active_profile": name,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Active profile set to %q\n", name)
			return nil
		},
	}
}
