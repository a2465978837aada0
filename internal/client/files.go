// Package client performs file operations inside a client installation:
// add-on installation from the distribution tree, cache clearing, and
// realm-connection file rewriting.
package client

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/mittelgard/clientforge/internal/config"
)

// realmlistBackupSuffix marks the copy of pre-existing realmlist content.
const realmlistBackupSuffix = ".orig"

// InstallAddons copies every top-level add-on directory from the
// distribution tree into the dataset's add-on directory, overwriting
// destination contents. A missing distribution add-on directory is a
// no-op: not every deployment ships add-ons.
func InstallAddons(distAddonDir string, ds *config.Dataset) error {
	entries, err := os.ReadDir(distAddonDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read addon distribution dir: %w", err)
	}

	addonDir := ds.AddonDir()
	if err := os.MkdirAll(addonDir, 0755); err != nil {
		return fmt.Errorf("create addon dir: %w", err)
	}

	installed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		src := filepath.Join(distAddonDir, entry.Name())
		dst := filepath.Join(addonDir, entry.Name())
		if err := copyDir(src, dst); err != nil {
			return fmt.Errorf("install addon %s: %w", entry.Name(), err)
		}
		installed++
	}

	log.Info().Str("dataset", ds.Name).Int("addons", installed).Msg("addons installed")
	return nil
}

// ClearCache recursively deletes the client's cache directory. A missing
// cache directory is not an error.
func ClearCache(ds *config.Dataset) error {
	if err := os.RemoveAll(ds.CacheDir()); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	log.Info().Str("dataset", ds.Name).Str("dir", ds.CacheDir()).Msg("cache cleared")
	return nil
}

// WriteRealmlist points the realm-connection file at ip. Pre-existing
// content that differs from what will be written is backed up first,
// copy-if-absent: the first capture wins, later rewrites never clobber it.
func WriteRealmlist(ds *config.Dataset, ip string) error {
	path := ds.RealmlistPath()
	content := fmt.Sprintf("set realmlist %s\n", ip)

	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if string(existing) != content {
			if err := backupIfAbsent(path, existing); err != nil {
				return err
			}
		}
	case os.IsNotExist(err):
		// Nothing to back up.
	default:
		return fmt.Errorf("read realmlist: %w", err)
	}

	if err := writeAtomic(path, []byte(content)); err != nil {
		return fmt.Errorf("write realmlist: %w", err)
	}

	log.Info().Str("dataset", ds.Name).Str("ip", ip).Msg("realmlist rewritten")
	return nil
}

func backupIfAbsent(path string, content []byte) error {
	backupPath := path + realmlistBackupSuffix
	if _, err := os.Stat(backupPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat realmlist backup: %w", err)
	}

	if err := os.WriteFile(backupPath, content, 0644); err != nil {
		return fmt.Errorf("back up realmlist: %w", err)
	}
	return nil
}

// writeAtomic writes data through a temp file and rename in the target
// directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".forge-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	tmp.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// copyDir recursively copies src into dst, overwriting existing files.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
}
