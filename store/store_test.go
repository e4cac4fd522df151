// go-arq
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-arq.
//
// go-arq is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-arq is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-arq; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package store

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dest := filepath.Join(dir, "nested", "out", "received.bin")
	data := []byte("reassembled stream")

	s := NewFileStore()
	require.NoError(t, s.Save(data, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(dest)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestFileStoreOverwrite(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "received.bin")
	require.NoError(t, os.WriteFile(dest, []byte("old contents that are longer"), 0o600))

	s := &FileStore{}
	require.NoError(t, s.Save([]byte("new"), dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestFileStoreEmptyTransfer(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, NewFileStore().Save(nil, dest))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestFileStoreErrors(t *testing.T) {
	t.Parallel()

	s := NewFileStore()
	require.Error(t, s.Save([]byte("x"), ""))

	// A regular file where a directory is needed.
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	require.Error(t, s.Save([]byte("x"), filepath.Join(blocker, "out.bin")))
}
