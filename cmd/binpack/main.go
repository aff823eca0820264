// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Command binpack inspects and edits game pack files.
package main

func main() {
	Execute()
}
