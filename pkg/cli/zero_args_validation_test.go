package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZeroArgCommandsRejectUnexpectedPositionalArgs(t *testing.T) {
	isolateEnv(t)

	bootstrap, _, _ := newTestRootCmd(t, nil)
	require.NoError(t, run(bootstrap, "config", "set-profile", "--name", "default", "--region", "us-east-1"))

	tests := []struct {
		name string
		args []string
	}{
		{name: "version", args: []string{"version", "extra"}},
		{name: "config show", args: []string{"config", "show", "extra"}},
		{name: "version json", args: []string{"version", "--output", "json", "extra"}},
		{name: "config set-profile", args: []string{"config", "set-profile", "--name", "p", "extra"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, _, _ := newTestRootCmd(t, nil)
			err := run(cmd, tc.args...)
			require.Error(t, err)
			require.Contains(t, err.Error(), "unknown command \"extra\"")
		})
	}
}
