// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"

	"github.com/suprsokr/go-binpack"
	"github.com/suprsokr/go-binpack/backup"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup> <pack>",
	Short: "Restore a pack from a compressed snapshot",
	Long: `Restore a pack from a snapshot written before a save. The codec is
detected from the snapshot itself. The snapshot must hold a valid pack; its
bytes are written back unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := backup.ReadFile(args[0])
		if err != nil {
			return err
		}
		a, err := binpack.ParseFormat(data, format)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", args[0], err)
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("snapshot %s: %w", args[0], err)
		}
		if err := binpack.WriteFile(args[1], data); err != nil {
			return err
		}
		logger.Info("restored pack", "pack", args[1], "entries", a.Len(), "digest", digest.FromBytes(data))
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Restored %s (%d entries)", args[1], a.Len())))
		return nil
	},
}
