package cli_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzim/openedx2zim/internal/cli"
)

// runInitViperConfig runs InitViperConfig the way the application does, from
// within a command execution.
func runInitViperConfig(t *testing.T, vip *viper.Viper, args ...string) error {
	t.Helper()

	var initErr error
	cmd := &cobra.Command{
		Use:           "testcmd",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			initErr = cli.InitViperConfig("testcmd", cmd, vip)
			return nil
		},
	}
	cli.InstallConfigFlag(cmd)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute(), "Setup: command execution should not fail")
	return initErr
}

func TestSetSlog(t *testing.T) {
	tests := map[string]struct {
		level   int
		jsonLog bool
	}{
		"Default level": {level: 0},
		"Info level":    {level: 1},
		"Info json":     {level: 1, jsonLog: true},
		"Debug json":    {level: 2, jsonLog: true},
	}

	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			slog.SetDefault(defaultLogger)
			cli.SetSlog(tc.level, tc.jsonLog)

			_, isJSON := slog.Default().Handler().(*slog.JSONHandler)
			assert.Equal(t, tc.jsonLog, isJSON, "unexpected log handler type")
		})
	}
}

func TestInitViperConfig(t *testing.T) {
	tests := map[string]struct {
		configContent string
		noConfigFile  bool

		wantName string
		wantErr  bool
	}{
		"Explicit config file is loaded": {
			configContent: "name: demo-course\n",
			wantName:      "demo-course",
		},
		"No config file falls back to defaults": {
			noConfigFile: true,
		},

		"Invalid config file errors": {
			configContent: "name: [unbalanced",
			wantErr:       true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var args []string
			if !tc.noConfigFile {
				path := filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tc.configContent), 0600), "Setup: could not write config file")
				args = []string{"--config", path}
			}

			vip := viper.New()
			err := runInitViperConfig(t, vip, args...)
			if tc.wantErr {
				require.Error(t, err, "InitViperConfig should have failed")
				return
			}
			require.NoError(t, err, "InitViperConfig should not have failed")

			assert.Equal(t, tc.wantName, vip.GetString("name"), "Configured value should be loaded")
		})
	}
}

func TestInitViperConfigBindsEnvironment(t *testing.T) {
	t.Setenv("TESTCMD_EMAIL", "user@example.org")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0600), "Setup: could not write config file")

	vip := viper.New()
	require.NoError(t, runInitViperConfig(t, vip, "--config", path), "InitViperConfig should not have failed")
	assert.Equal(t, "user@example.org", vip.GetString("email"), "Environment variable should be bound")
}
