package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadFromEnv reads so host settings do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AWS_REGION", "REGION", "KEY_ID", "SECRET", "SESSION_TOKEN",
		"ATHENA_ENDPOINT", "ATHENA_WORKGROUP", "ATHENA_DATABASE", "ATHENA_CATALOG",
		"OUTPUT_BUCKET", "OUTPUT_SUBPATH", "TEMPLATE_DIR", "CATALOG_FILE",
		"POLL_INTERVAL", "POLL_MAX_INTERVAL", "POLL_MULTIPLIER", "POLL_MAX_ATTEMPTS",
		"POLL_TRANSIENT_RETRIES", "WAIT_TIMEOUT", "ATHENA_RPS", "ATHENA_BURST",
		"MAX_RESULT_ROWS", "PARALLEL_FAMILIES", "FETCH_RESULTS", "CHECK_OUTPUT",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Nil(t, cfg.Region)
	assert.False(t, cfg.HasStaticCredentials())
	assert.Equal(t, ".quilt/athena", cfg.OutputSubpath)
	assert.Equal(t, ".", cfg.TemplateDir)
	assert.Equal(t, time.Second, cfg.Wait.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Wait.MaxPollInterval)
	assert.Equal(t, DefaultMaxPollAttempts, cfg.Wait.MaxPollAttempts)
	assert.Equal(t, DefaultTransientRetries, cfg.Wait.TransientRetries)
	assert.Equal(t, 10*time.Minute, cfg.Wait.Timeout)
	assert.True(t, cfg.CheckOutput)
	assert.False(t, cfg.ParallelFamilies)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("KEY_ID", "testkey")
	t.Setenv("SECRET", "testsecret")
	t.Setenv("ATHENA_WORKGROUP", "quilt")
	t.Setenv("OUTPUT_BUCKET", "results-bucket")
	t.Setenv("POLL_INTERVAL", "250ms")
	t.Setenv("POLL_MAX_INTERVAL", "2s")
	t.Setenv("POLL_MAX_ATTEMPTS", "7")
	t.Setenv("POLL_TRANSIENT_RETRIES", "0")
	t.Setenv("PARALLEL_FAMILIES", "true")
	t.Setenv("CHECK_OUTPUT", "off")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	require.NotNil(t, cfg.Region)
	assert.Equal(t, "us-east-1", *cfg.Region)
	assert.True(t, cfg.HasStaticCredentials())
	assert.Equal(t, "quilt", cfg.WorkGroup)
	assert.Equal(t, "results-bucket", cfg.OutputBucket)
	assert.Equal(t, 250*time.Millisecond, cfg.Wait.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.Wait.MaxPollInterval)
	assert.Equal(t, 7, cfg.Wait.MaxPollAttempts)
	assert.Equal(t, 0, cfg.Wait.TransientRetries)
	assert.True(t, cfg.ParallelFamilies)
	assert.False(t, cfg.CheckOutput)
}

func TestLoadFromEnv_RegionFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("REGION", "eu-west-1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.NotNil(t, cfg.Region)
	assert.Equal(t, "eu-west-1", *cfg.Region)
}

func TestLoadFromEnv_PartialCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("KEY_ID", "testkey")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.HasStaticCredentials(), "partial credentials should be dropped")
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "KEY_ID/SECRET")
}

func TestLoadFromEnv_MalformedValuesWarn(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("POLL_MAX_ATTEMPTS", "many")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultPollInterval, cfg.Wait.PollInterval)
	assert.Equal(t, DefaultMaxPollAttempts, cfg.Wait.MaxPollAttempts)
	assert.Len(t, cfg.Warnings, 2)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "negative_attempts", env: map[string]string{"POLL_MAX_ATTEMPTS": "-1"}, wantErr: "POLL_MAX_ATTEMPTS"},
		{name: "max_below_interval", env: map[string]string{"POLL_INTERVAL": "5s", "POLL_MAX_INTERVAL": "1s"}, wantErr: "POLL_MAX_INTERVAL"},
		{name: "negative_interval", env: map[string]string{"POLL_INTERVAL": "-1s"}, wantErr: "POLL_INTERVAL must be positive"},
		{name: "bad_log_format", env: map[string]string{"LOG_FORMAT": "xml"}, wantErr: "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyDefaults_LongPollInterval(t *testing.T) {
	cfg := &Config{Wait: WaitConfig{PollInterval: time.Minute, TransientRetries: -1}}
	cfg.ApplyDefaults()
	assert.Equal(t, time.Minute, cfg.Wait.MaxPollInterval)
	require.NoError(t, cfg.Validate())
}

func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO", "bogus": "INFO"} {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel().String(), "level %q", in)
	}
}

func TestAWSConfig_StaticCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))
	region, key, secret := "us-west-2", "AKIDEXAMPLE", "secret"
	cfg := &Config{Region: &region, KeyID: &key, Secret: &secret}

	awsCfg, err := cfg.AWSConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("# comment\nTEST_KEY=\"test_value\"\nnot a pair\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_KEY"); val != "test_value" {
		t.Errorf("TEST_KEY = %q, want %q", val, "test_value")
	}
	_ = os.Unsetenv("TEST_KEY")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}
