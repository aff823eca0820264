// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

/*
Package binpack reads, edits and writes the binary pack containers that
bundle game assets such as sprites, effects, dungeon tables and monster data.

A pack is a small header, a table of entry offsets, and the entry data. The
container stores no names: an entry is identified only by its index, and
names come from conventions outside the file.

# Layouts

Two table layouts are supported, selected by [Format.Layout]:

  - [LayoutOffsetLength], the layout of the game's packs: a zero magic word,
    the entry count, one (offset, length) pair per entry and an 8-byte zero
    terminator. The data region starts on a 16-byte boundary and every entry
    is padded to 16 bytes with 0xFF.
  - [LayoutOffsetSentinel]: count+1 offsets, the last equal to the file
    length, with entry lengths implied by consecutive offsets.

The constants of a layout live in [Format] so they can be calibrated
against real files.

# Basic Usage

Reading a pack:

	archive, err := binpack.Open("MONSTER/monster.bin")
	if err != nil {
		log.Fatal(err)
	}

	for i, data := range archive.All() {
		fmt.Println(i, filetype.Detect(data), len(data))
	}

Editing and saving:

	if err := archive.Replace(3, sprite); err != nil {
		log.Fatal(err)
	}
	if err := archive.Save("MONSTER/monster.bin"); err != nil {
		log.Fatal(err)
	}

Every write rebuilds the header, table and padding from the in-memory
entries. Save writes to a temporary file and renames it into place.

# Sessions

[Session] tracks a loaded pack, the entries changed since it was loaded,
and the content digests before and after editing. It can export every
entry to a directory and rebuild the pack from one, and can snapshot the
previous file with package backup before saving over it.

# Errors

Parse failures match [ErrMalformed] and carry a [*FormatError]. Bad
indexes match [ErrIndexOutOfRange]. File failures match [ErrIO] and unwrap
to the underlying os error.
*/
package binpack
