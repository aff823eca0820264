// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/suprsokr/go-binpack"
)

var packsCmd = &cobra.Command{
	Use:   "packs [path...]",
	Short: "Show the packs found under the game filesystem root",
	Long: `Show the packs found under the game filesystem root given by --root or
the config file. Without arguments the configured pack list is used. Names
match regardless of case or separator style.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rootDir == "" {
			return errors.New("no game filesystem root: pass --root or set root in the config file")
		}
		paths := cfg.Packs
		if len(args) > 0 {
			paths = args
		}

		set, err := binpack.OpenPackSet(rootDir, paths, format)
		if err != nil {
			return err
		}
		logger.Debug("opened pack set", "root", set.Root(), "packs", len(set.Paths()))

		t := newTable("Pack", "File", "Entries", "Size")
		for _, p := range set.Paths() {
			a, err := set.Archive(p)
			if err != nil {
				return err
			}
			file, err := set.Resolve(p)
			if err != nil {
				return err
			}
			t.Row(p, file, strconv.Itoa(a.Len()), units.BytesSize(float64(a.Size())))
		}
		fmt.Fprintln(cmd.OutOrStdout(), t)

		if missing := len(paths) - len(set.Paths()); missing > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), WarningStyle.Render(fmt.Sprintf("%d pack(s) not found", missing)))
		}
		return nil
	},
}
