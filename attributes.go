// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"hash/crc32"

	"github.com/suprsokr/go-binpack/filetype"
)

// EntryInfo describes one entry as it would be written.
type EntryInfo struct {
	Index  int
	Offset int
	Size   int
	Padded int
	CRC32  uint32 // IEEE CRC-32 of the entry content
	Label  filetype.Label
}

// Info describes entry i.
func (a *Archive) Info(i int) (EntryInfo, error) {
	if err := a.checkIndex("info", i, len(a.entries)); err != nil {
		return EntryInfo{}, err
	}
	return a.info(i, a.plan().rows[i]), nil
}

// Infos describes every entry in index order.
func (a *Archive) Infos() []EntryInfo {
	rows := a.plan().rows
	out := make([]EntryInfo, len(rows))
	for i, row := range rows {
		out[i] = a.info(i, row)
	}
	return out
}

func (a *Archive) info(i int, row TableEntry) EntryInfo {
	data := a.entries[i]
	return EntryInfo{
		Index:  i,
		Offset: row.Offset,
		Size:   row.Length,
		Padded: row.Padded,
		CRC32:  crc32.ChecksumIEEE(data),
		Label:  filetype.Detect(data),
	}
}
