// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/suprsokr/go-binpack"
	"github.com/suprsokr/go-binpack/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"

	verbose bool
	cfgFile string
	rootDir string

	cfg     *config.Config
	cfgPath string
	format  binpack.Format
	logger  = log.NewWithOptions(os.Stderr, log.Options{Prefix: "binpack"})

	rootCmd = &cobra.Command{
		Use:   "binpack",
		Short: "Inspect and edit game pack files",
		Long: TitleStyle.Render("binpack") + SubtitleStyle.Render(" - inspect and edit game pack files") + `

A pack bundles sprites, effects and data tables behind a table of entry
offsets. Entries are addressed by index and classified by their content.

` + SubtitleStyle.Render("Examples:") + `
  binpack list MONSTER/monster.bin          List entries with their types
  binpack export monster.bin out/ -d        Export every entry, decompressed
  binpack import monster.bin out/           Rebuild a pack from a directory
  binpack packs --root rom/data             Show the known packs of a game`,
		SilenceUsage:      true,
		PersistentPreRunE: initRoot,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/binpack/config.toml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "extracted game filesystem root")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(entryCmd)
	rootCmd.AddCommand(packsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// initRoot loads the configuration and applies it to the logger and format.
func initRoot(cmd *cobra.Command, _ []string) error {
	if cmd == configInitCmd {
		return nil
	}
	loaded, path, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg, cfgPath = loaded, path

	logger.SetLevel(cfg.Level())
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	if path != "" {
		logger.Debug("loaded config", "path", path)
	}

	if rootDir == "" {
		rootDir = cfg.Root
	}

	format, err = cfg.PackFormat()
	return err
}

func newSession() *binpack.Session {
	return binpack.NewSession(
		binpack.WithLogger(logger),
		binpack.WithFormat(format),
		binpack.WithWorkers(cfg.Workers),
		binpack.WithBackup(cfg.Codec()),
	)
}

// loadSession opens the pack at path in a new session.
func loadSession(path string) (*binpack.Session, error) {
	s := newSession()
	if _, err := s.Load(path); err != nil {
		return nil, err
	}
	return s, nil
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid entry index %q", s)
	}
	return i, nil
}
