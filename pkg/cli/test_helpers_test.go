package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"quilt-athena/internal/config"
	"quilt-athena/internal/domain"
)

const (
	dropManifests   = "DROP TABLE IF EXISTS `quilt_manifests_my-bucket`"
	createManifests = "CREATE EXTERNAL TABLE `quilt_manifests_my-bucket`"
	viewNamed       = "CREATE OR REPLACE VIEW `quilt_named_packages_my-bucket_view`"
)

var testTemplates = map[string]string{
	"manifests.ddl":           "CREATE EXTERNAL TABLE `{prefix}_{bucket}` (logical_key STRING)\nLOCATION 's3://{bucket}/.quilt/packages/'",
	"manifests_view.ddl":      "CREATE OR REPLACE VIEW `{prefix}_{bucket}_view` AS SELECT * FROM `{prefix}_{bucket}`",
	"named_packages.ddl":      "CREATE EXTERNAL TABLE `{prefix}_{bucket}` (hash STRING)\nLOCATION 's3://{bucket}/.quilt/named_packages/'",
	"named_packages_view.ddl": "CREATE OR REPLACE VIEW `{prefix}_{bucket}_view` AS SELECT * FROM `{prefix}_{bucket}`",
}

// writeTemplates writes the default template set to a temp dir, skipping
// the names in omit.
func writeTemplates(t *testing.T, omit ...string) string {
	t.Helper()
	dir := t.TempDir()
	skip := make(map[string]bool, len(omit))
	for _, name := range omit {
		skip[name] = true
	}
	for name, body := range testTemplates {
		if skip[name] {
			continue
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

// fakeBackends returns a factory handing out svc and counting calls.
func fakeBackends(svc domain.QueryService, calls *int) BackendFactory {
	return func(_ context.Context, _ *config.Config, _ *slog.Logger) (*Backends, error) {
		*calls++
		return &Backends{Queries: svc}, nil
	}
}

// isolateEnv points HOME at a temp dir so no real profile is loaded, clears
// settings the CLI reads from the environment and quiets logging.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LOG_LEVEL", "error")
	for _, key := range []string{"OUTPUT_SUBPATH", "OUTPUT_BUCKET", "TEMPLATE_DIR", "CATALOG_FILE", "QUILT_ATHENA_OUTPUT"} {
		t.Setenv(key, "")
	}
}

// newTestRootCmd creates a fresh root command using backends, capturing
// its output.
func newTestRootCmd(t *testing.T, backends BackendFactory) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	rootCmd := newRootCmd(backends)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	return rootCmd, &stdout, &stderr
}

// fastArgs keeps polling quick in tests.
func fastArgs(templates string) []string {
	return []string{"--templates", templates, "--poll-interval", "1ms", "--max-poll-interval", "1ms", "--max-attempts", "20"}
}

func run(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	return cmd.Execute()
}
