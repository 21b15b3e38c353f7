/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/taskapi/taskapi/config"
	"github.com/taskapi/taskapi/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskapi",
	Short: "Task management API server and tooling",
	Long: `taskapi serves a per-user task list over HTTP and ships the
maintenance commands that go with it.

Configuration is read from the environment:

` + config.Usage(),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the logging settings.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return config.Config{}, err
	}
	if err := logging.Setup(cfg.Log); err != nil {
		return config.Config{}, err
	}
	logrus.WithField("log_level", logrus.GetLevel().String()).Debug("configuration loaded")
	return cfg, nil
}
