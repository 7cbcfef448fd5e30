// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package pdfdoc

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// OverwritePolicy decides what happens when the output file already exists.
type OverwritePolicy int

const (
	OverwriteRename OverwritePolicy = iota
	OverwriteFail
	OverwriteForce
)

func ParseOverwritePolicy(v string) (OverwritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "rename":
		return OverwriteRename, nil
	case "fail", "error":
		return OverwriteFail, nil
	case "force", "overwrite":
		return OverwriteForce, nil
	default:
		return OverwriteRename, fmt.Errorf("politica de sobrescritura no valida: %q (use fail|rename|force)", v)
	}
}

func (p OverwritePolicy) String() string {
	switch p {
	case OverwriteFail:
		return "fail"
	case OverwriteForce:
		return "force"
	default:
		return "rename"
	}
}

// DefaultOutputPath returns <infile>.signed<ext>, e.g. doc.pdf -> doc.signed.pdf.
func DefaultOutputPath(infile string) string {
	ext := filepath.Ext(infile)
	return strings.TrimSuffix(infile, ext) + ".signed" + ext
}

// ResolveOutputPath applies policy to path. renamed reports a new free name
// was chosen; overwrote reports an existing file will be replaced.
func ResolveOutputPath(path string, policy OverwritePolicy) (resolved string, renamed bool, overwrote bool, err error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", false, false, fmt.Errorf("ruta de salida vacia")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return path, false, false, nil
		}
		return "", false, false, err
	}

	switch policy {
	case OverwriteForce:
		return path, false, true, nil
	case OverwriteRename:
		newPath, err := nextAvailablePath(path)
		if err != nil {
			return "", false, false, err
		}
		return newPath, true, false, nil
	default:
		return "", false, false, fmt.Errorf("el fichero de salida ya existe: %s", path)
	}
}

func nextAvailablePath(path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i <= 9999; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return candidate, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("no se encontro nombre libre para guardar el fichero firmado")
}

// WriteFile writes data to path atomically: a temp file in the same
// directory is synced and renamed over path, so readers never see a partial
// document.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".signpdf-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)

	// Windows refuses to rename over an existing file.
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (tras borrar: %v)", err, err2)
		}
	}
	return nil
}
