// Package config implements the config command group.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/avhost/av/internal/conf"
	"github.com/avhost/av/internal/errors"
)

const redacted = "********"

// Command creates the config command with its show and init subcommands
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(showCommand(settings), initCommand(settings))
	return cmd
}

func showCommand(settings *conf.Settings) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Show(cmd.OutOrStdout(), settings, reveal)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print passwords and DSNs in clear text")
	return cmd
}

func initCommand(settings *conf.Settings) *cobra.Command {
	var (
		path      string
		force     bool
		effective bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file",
		Long: "Write the default configuration, or the effective one with --effective, " +
			"to the given path or the first configuration search path.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				paths, err := conf.GetDefaultConfigPaths()
				if err != nil {
					return err
				}
				path = filepath.Join(paths[0], conf.ConfigFileName)
			}
			var src *conf.Settings
			if effective {
				src = settings
			}
			if err := Init(path, src, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return err
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Destination file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&effective, "effective", false, "Write the effective settings instead of the defaults")
	return cmd
}

// Show writes settings as YAML. Secrets are masked unless reveal is set.
func Show(w io.Writer, settings *conf.Settings, reveal bool) error {
	s := *settings
	if !reveal {
		s.MQTT.Password = mask(s.MQTT.Password)
		s.Journal.DSN = mask(s.Journal.DSN)
		s.Sentry.DSN = mask(s.Sentry.DSN)
	}
	out, err := s.MarshalYAMLString()
	if err != nil {
		return err
	}
	if file, err := conf.FindConfigFile(); err == nil {
		if _, err := fmt.Fprintf(w, "# %s\n", file); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, out)
	return err
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}

// Init writes settings to path, or the embedded defaults when settings is
// nil. An existing file is kept unless force is set.
func Init(path string, settings *conf.Settings, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.Newf("%s already exists, use --force to overwrite", path).
			Component("config").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.New(err).
			Component("config").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	if settings != nil {
		return conf.SaveYAMLConfig(path, settings)
	}
	if err := os.WriteFile(path, []byte(conf.GetDefaultConfig()), 0o600); err != nil {
		return errors.New(err).
			Component("config").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}
