// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	exportDecompress bool
	importOut        string
)

var exportCmd = &cobra.Command{
	Use:   "export <pack> <dir>",
	Short: "Export every entry of a pack into a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}
		n, err := s.ExportAll(cmd.Context(), args[1], exportDecompress)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Exported %d entries to %s", n, args[1])))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <pack> <dir>",
	Short: "Replace the entries of a pack with the files of a directory",
	Long: `Replace the entries of a pack with the regular files of a directory,
taken in name order. The pack header is kept. An empty directory leaves the
pack unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}
		n, err := s.ImportAll(args[1])
		if err != nil {
			return err
		}
		if n == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render("No files found in "+args[1]))
			return nil
		}
		if err := saveSession(s, importOut); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Imported %d entries into %s", n, s.Path())))
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVarP(&exportDecompress, "decompress", "d", false, "decompress PX containers")
	importCmd.Flags().StringVarP(&importOut, "out", "o", "", "write the pack here instead of in place")
}
