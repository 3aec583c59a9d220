// Copyright 2022 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package download resolves the filesystem location incoming Jingle file
// transfers are written to.
package download // import "git.sr.ht/~jingle-ibb/xmpp/jingle/download"

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dir returns the Downloads directory under the user's home directory (as
// reported by os.UserHomeDir), creating it (mode 0700) if it does not
// already exist.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("download: resolve home directory: %w", err)
	}
	dir := filepath.Join(home, "Downloads")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("download: create %s: %w", dir, err)
	}
	return dir, nil
}

// UniquePath returns a path under dir for base that does not currently
// exist, appending " (n)" before the extension (starting at n=1) until a
// free name is found. Only the base name of base is used: any path
// components are stripped, and a name that is empty or reduces to "." or a
// path separator is replaced by "file".
func UniquePath(dir, base string) (string, error) {
	base = filepath.Base(base)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "file"
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 0; ; n++ {
		name := base
		if n > 0 {
			name = stem + " (" + strconv.Itoa(n) + ")" + ext
		}
		path := filepath.Join(dir, name)
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("download: stat %s: %w", path, err)
		}
	}
}
