package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/blog-client/internal/constants"
)

const (
	configArgumentCount = 2
	configLockTimeout   = 5 * time.Second
	configLockRetry     = 50 * time.Millisecond
)

// Config represents the CLI configuration file.
type Config struct {
	API         string `json:"api,omitempty"          yaml:"api,omitempty"`
	Token       string `json:"token,omitempty"        yaml:"token,omitempty"`
	Output      string `json:"output,omitempty"       yaml:"output,omitempty"`
	Verbose     bool   `json:"verbose,omitempty"      yaml:"verbose,omitempty"`
	NATSURL     string `json:"nats_url,omitempty"     yaml:"nats_url,omitempty"`
	NATSSubject string `json:"nats_subject,omitempty" yaml:"nats_subject,omitempty"`
}

// configSetters maps settable keys onto the config struct.
var configSetters = map[string]func(*Config, string) error{
	keyAPI: func(c *Config, v string) error {
		c.API = v

		return nil
	},
	keyToken: func(c *Config, v string) error {
		c.Token = v

		return nil
	},
	keyOutput: func(c *Config, v string) error {
		switch v {
		case constants.FormatJSON, constants.FormatYAML, constants.FormatTable:
			c.Output = v

			return nil
		default:
			return fmt.Errorf("%w: %s", constants.ErrUnsupportedFormat, v)
		}
	},
	keyVerbose: func(c *Config, v string) error {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", keyVerbose, err)
		}

		c.Verbose = parsed

		return nil
	},
	keyNATSURL: func(c *Config, v string) error {
		c.NATSURL = v

		return nil
	},
	keyNATSSubject: func(c *Config, v string) error {
		c.NATSSubject = v

		return nil
	},
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Show and change the blog CLI configuration file",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective configuration from flags, environment and config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := effectiveConfig()
			config.Token = maskToken(config.Token)

			return writeOutput(cmd, config, func(w io.Writer) error {
				table := tablewriter.NewWriter(w)
				table.Header("Property", "Value")
				_ = table.Append([]string{"API", valueOrNA(config.API)})
				_ = table.Append([]string{"Token", valueOrNA(config.Token)})
				_ = table.Append([]string{"Output", valueOrNA(config.Output)})
				_ = table.Append([]string{"Verbose", strconv.FormatBool(config.Verbose)})
				_ = table.Append([]string{"NATS URL", valueOrNA(config.NATSURL)})
				_ = table.Append([]string{"NATS Subject", valueOrNA(config.NATSSubject)})

				return renderTable(table)
			})
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: "Set a configuration value. Keys: " +
			"api, token, output, verbose, nats_url, nats_subject",
		Args: cobra.ExactArgs(configArgumentCount),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			setter, ok := configSetters[key]
			if !ok {
				return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
			}

			configFile, err := configFilePath()
			if err != nil {
				return err
			}

			err = updateConfigFile(commandContext(cmd), configFile, func(config *Config) error {
				return setter(config, value)
			})
			if err != nil {
				return err
			}

			if key == keyToken {
				value = maskToken(value)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s in %s\n", key, value, configFile)

			return nil
		},
	}
}

func effectiveConfig() *Config {
	return &Config{
		API:         viper.GetString(keyAPI),
		Token:       viper.GetString(keyToken),
		Output:      viper.GetString(keyOutput),
		Verbose:     viper.GetBool(keyVerbose),
		NATSURL:     viper.GetString(keyNATSURL),
		NATSSubject: viper.GetString(keyNATSSubject),
	}
}

// updateConfigFile applies change to the config file under an exclusive
// lock, so concurrent invocations do not lose each other's writes.
func updateConfigFile(ctx context.Context, configFile string, change func(*Config) error) error {
	err := os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	lock := flock.New(configFile + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, configLockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, configLockRetry)
	if err != nil || !locked {
		return fmt.Errorf("%w: %s", constants.ErrConfigLockTimedOut, configFile)
	}

	defer func() { _ = lock.Unlock() }()

	config, err := readConfigFile(configFile)
	if err != nil {
		return err
	}

	err = change(config)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func readConfigFile(configFile string) (*Config, error) {
	config := &Config{}

	// #nosec G304 -- the path comes from the --config flag or the user's home directory
	data, err := os.ReadFile(configFile)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}
