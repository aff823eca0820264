// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"strconv"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/suprsokr/go-binpack/filetype"
)

var listCmd = &cobra.Command{
	Use:   "list <pack>",
	Short: "List the entries of a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}

		t := newTable("#", "Offset", "Size", "Type", "CRC32")
		for _, info := range s.Archive().Infos() {
			data, err := s.Data(info.Index, false)
			if err != nil {
				return err
			}
			kind := filetype.Inspect(data)
			label := kind.String()
			if kind.Err != nil {
				label = WarningStyle.Render(label + " (corrupt)")
			}
			t.Row(
				strconv.Itoa(info.Index),
				fmt.Sprintf("0x%08X", info.Offset),
				units.BytesSize(float64(info.Size)),
				label,
				fmt.Sprintf("%08X", info.CRC32),
			)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <pack>",
	Short: "Show a summary of a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}
		a := s.Archive()

		counts := make(map[filetype.Label]int)
		for _, info := range a.Infos() {
			counts[info.Label]++
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, TitleStyle.Render(s.Path()))
		fmt.Fprintln(out, field("Entries", a.Len()))
		fmt.Fprintln(out, field("Size", units.BytesSize(float64(s.LoadedSize()))))
		fmt.Fprintln(out, field("Layout", a.Format().Layout))
		fmt.Fprintln(out, field("Magic", fmt.Sprintf("0x%08X", a.Magic())))
		fmt.Fprintln(out, field("Digest", s.LoadedDigest()))

		t := newTable("Type", "Entries")
		for _, l := range filetype.Labels() {
			if n := counts[l]; n > 0 {
				t.Row(l.String(), strconv.Itoa(n))
			}
		}
		fmt.Fprintln(out, t)
		return nil
	},
}
