// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/suprsokr/go-binpack"
)

var (
	entryDecompress bool
	entryCompress   bool
	entryAt         int
	entryOut        string
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Export, replace, add or remove a single entry",
}

var entryExportCmd = &cobra.Command{
	Use:   "export <pack> <index> <file>",
	Short: "Write one entry to a file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, i, err := sessionAndIndex(args)
		if err != nil {
			return err
		}
		if err := s.ExportEntry(i, args[2], entryDecompress); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Exported entry %d to %s", i, args[2])))
		return nil
	},
}

var entryImportCmd = &cobra.Command{
	Use:   "import <pack> <index> <file>",
	Short: "Replace one entry with the content of a file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, i, err := sessionAndIndex(args)
		if err != nil {
			return err
		}
		data, err := readInput(args[2])
		if err != nil {
			return err
		}
		label, err := s.Import(i, data, entryCompress)
		if err != nil {
			return err
		}
		if err := saveSession(s, entryOut); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Replaced entry %d", i)), field("type", label))
		return nil
	},
}

var entryAddCmd = &cobra.Command{
	Use:   "add <pack> <file>",
	Short: "Add a file as a new entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}
		data, err := readInput(args[1])
		if err != nil {
			return err
		}
		i, err := s.Add(data, entryAt, entryCompress)
		if err != nil {
			return err
		}
		if err := saveSession(s, entryOut); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Added entry %d", i)))
		return nil
	},
}

var entryRemoveCmd = &cobra.Command{
	Use:   "remove <pack> <index>",
	Short: "Remove one entry; later entries move down by one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, i, err := sessionAndIndex(args)
		if err != nil {
			return err
		}
		if err := s.Remove(i); err != nil {
			return err
		}
		if err := saveSession(s, entryOut); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Removed entry %d, %d left", i, s.Len())))
		return nil
	},
}

func init() {
	entryExportCmd.Flags().BoolVarP(&entryDecompress, "decompress", "d", false, "decompress a PX container")
	for _, c := range []*cobra.Command{entryImportCmd, entryAddCmd} {
		c.Flags().BoolVarP(&entryCompress, "compress", "c", false, "store the file as a PKDPX container")
	}
	entryAddCmd.Flags().IntVar(&entryAt, "at", -1, "insert at this index instead of appending")
	for _, c := range []*cobra.Command{entryImportCmd, entryAddCmd, entryRemoveCmd} {
		c.Flags().StringVarP(&entryOut, "out", "o", "", "write the pack here instead of in place")
	}

	entryCmd.AddCommand(entryExportCmd, entryImportCmd, entryAddCmd, entryRemoveCmd)
}

// sessionAndIndex loads the pack in args[0] and parses the index in args[1].
func sessionAndIndex(args []string) (*binpack.Session, int, error) {
	i, err := parseIndex(args[1])
	if err != nil {
		return nil, 0, err
	}
	s, err := loadSession(args[0])
	if err != nil {
		return nil, 0, err
	}
	return s, i, nil
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &binpack.IOError{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// saveSession writes s in place, or to out when it is set.
func saveSession(s *binpack.Session, out string) error {
	if out != "" {
		return s.SaveAs(out)
	}
	return s.Save()
}
