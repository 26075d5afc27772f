package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/blog-client/internal/constants"
)

// Viper keys shared by flags, environment and the config file.
const (
	keyConfig      = "config"
	keyAPI         = "api"
	keyToken       = "token"
	keyOutput      = "output"
	keyVerbose     = "verbose"
	keyNATSURL     = "nats_url"
	keyNATSSubject = "nats_subject"
)

// NewRootCommand creates the blog command tree.
func NewRootCommand(version, commit, date string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "blog",
		Short: "Blog posts CLI",
		Long: `A command-line interface for a blog posts REST backend.

Posts are read through a tag-invalidated cache, so a create, update or delete
refreshes every list and post view that depends on it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.blog/config.yml)")
	rootCmd.PersistentFlags().StringP("api", "a", "", "posts backend base URL")
	rootCmd.PersistentFlags().StringP("token", "t", "", "bearer token")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	_ = viper.BindPFlag(keyConfig, rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag(keyAPI, rootCmd.PersistentFlags().Lookup("api"))
	_ = viper.BindPFlag(keyToken, rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag(keyOutput, rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag(keyVerbose, rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(NewVersionCommand(version, commit, date))
	rootCmd.AddCommand(NewConfigCommand())
	rootCmd.AddCommand(NewPostsCommand())

	return rootCmd
}

func initConfig(cmd *cobra.Command) error {
	cfgFile := viper.GetString(keyConfig)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := defaultConfigDir()
		if err != nil {
			return err
		}

		viper.AddConfigPath(configDir)
		viper.SetConfigType("yml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("BLOG")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool(keyVerbose) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", viper.ConfigFileUsed())
		}
	}

	return nil
}

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".blog"), nil
}

// configFilePath returns the file config commands read and write.
func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}

	if flagged := viper.GetString(keyConfig); flagged != "" {
		return flagged, nil
	}

	configDir, err := defaultConfigDir()
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(configDir, constants.ConfigDirPerm)
	if err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.yml"), nil
}
