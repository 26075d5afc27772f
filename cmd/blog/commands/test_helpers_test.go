package commands_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/blog-client/cmd/blog/commands"
)

// findSubcommand finds a subcommand by name within a cobra command.
func findSubcommand(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return c
		}
	}

	return nil
}

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the CLI with a fresh viper state against configFile.
func execute(t *testing.T, configFile string, args ...string) result {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	root := commands.NewRootCommand("1.2.3", "abc123", "2026-01-01")

	var stdout, stderr bytes.Buffer

	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append(args, "--config="+configFile))

	err := root.Execute()

	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func tempConfig(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "config.yml")
}
