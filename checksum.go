// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binpack

import (
	"github.com/opencontainers/go-digest"
)

// Digest returns the content digest of the serialized archive.
func (a *Archive) Digest() digest.Digest {
	return digest.FromBytes(a.Bytes())
}

// EntryDigest returns the content digest of entry i.
func (a *Archive) EntryDigest(i int) (digest.Digest, error) {
	if err := a.checkIndex("digest", i, len(a.entries)); err != nil {
		return "", err
	}
	return digest.FromBytes(a.entries[i]), nil
}
