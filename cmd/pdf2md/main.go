// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdf2md CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured from --log-format and --log-level before any
// subcommand runs.
var logger = slog.Default()

// rootCmd is the base command for the pdf2md CLI.
var rootCmd = &cobra.Command{
	Use:   "pdf2md",
	Short: "Convert PDF documents to Markdown with a vision model",
	Long: `pdf2md renders each page of a PDF to an image, sends it to a vision-capable
language model, saves the figures the model finds, and reassembles the pages
into one Markdown document. With --solve it writes step-by-step solutions to
the problems on each page instead.

Configuration is read from pdf2md.yaml, PDF2MD_* environment variables and a
.env file in the working directory. The API key may also be stored in
.secrets/api-key.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("log-format")
		level, _ := cmd.Flags().GetString("log-level")
		l, err := newLogger(format, level, os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pdf2md.yaml or ~/.config/pdf2md/pdf2md.yaml)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("journal", "", "SQLite run journal path (empty disables it)")
	_ = viper.BindPFlag("journal", rootCmd.PersistentFlags().Lookup("journal"))
}

func initConfig() {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdf2md")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdf2md"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("PDF2MD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindLegacyEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
