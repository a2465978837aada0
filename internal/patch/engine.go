package patch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/mittelgard/clientforge/internal/config"
	"github.com/mittelgard/clientforge/internal/integrity"
)

// ExtensionBoundary is the offset the executable image is truncated to
// when the extension module is injected. The module's layout occupies the
// space beyond it.
const ExtensionBoundary = 0x758c00

// Engine applies a dataset's patch selection to its client executable.
//
// The engine patches the current working executable in place: it does not
// restore from the pristine backup first. Repeated runs with an unchanged
// selection are byte-stable because every edit writes the same fixed
// values to the same fixed addresses, but disabling a category does not
// revert edits it already applied. The backup exists as the integrity
// reference point, not as a patch source.
type Engine struct {
	catalog     *Catalog
	modulePath  string
	cleanDigest string
}

// Options configures an Engine.
type Options struct {
	// Catalog is the loaded patch catalog. Required.
	Catalog *Catalog
	// ModulePath is the distribution path of the extension module.
	ModulePath string
	// CleanDigest overrides the reference digest of the clean client
	// executable. Defaults to integrity.ReferenceDigest.
	CleanDigest string
}

// NewEngine creates a patch engine.
func NewEngine(opts Options) *Engine {
	digest := opts.CleanDigest
	if digest == "" {
		digest = integrity.ReferenceDigest
	}
	return &Engine{
		catalog:     opts.Catalog,
		modulePath:  opts.ModulePath,
		cleanDigest: digest,
	}
}

// Apply patches the dataset's working executable:
//
//  1. back up the working executable if no pristine backup exists yet
//  2. check the backup against the clean reference digest, self-healing
//     the backup from a clean working copy when possible
//  3. inject the extension module when the dataset enables it
//  4. apply every enabled catalog category for the dataset's build
//  5. commit the patched image back to the working path
//
// An unclean baseline is a logged warning, not an error: offset patches
// still apply, their addresses just cannot be validated against the known
// layout.
func (e *Engine) Apply(ds *config.Dataset) error {
	exePath := ds.ExePath()
	if _, err := os.Stat(exePath); err != nil {
		return &config.DatasetError{
			Dataset: ds.Name,
			Message: fmt.Sprintf("client executable not found at %s", exePath),
			Cause:   err,
		}
	}

	if err := e.ensureBackup(ds); err != nil {
		return err
	}

	image, err := os.ReadFile(exePath)
	if err != nil {
		return fmt.Errorf("read executable: %w", err)
	}

	if err := e.checkBaseline(ds, image); err != nil {
		return err
	}

	if ds.Extension {
		image, err = e.injectExtension(ds, image)
		if err != nil {
			return err
		}
	}

	if err := e.applyEdits(ds, image); err != nil {
		return err
	}

	if err := commit(exePath, image); err != nil {
		return fmt.Errorf("commit executable: %w", err)
	}

	log.Info().
		Str("dataset", ds.Name).
		Str("build", ds.Build).
		Strs("patches", ds.Patches).
		Msg("executable patched")
	return nil
}

// ensureBackup copies the working executable to the backup path unless a
// backup already exists. The backup is the trusted last known starting
// point and is never overwritten here.
func (e *Engine) ensureBackup(ds *config.Dataset) error {
	backupPath := ds.BackupPath()
	if _, err := os.Stat(backupPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat backup: %w", err)
	}

	if err := copyFile(ds.ExePath(), backupPath); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	log.Info().Str("dataset", ds.Name).Str("backup", backupPath).Msg("pristine backup created")
	return nil
}

// checkBaseline verifies the backup against the clean reference digest.
// A clean working copy replaces a dirty backup (a fresh client may have
// been supplied after a dirty backup was captured). A fully dirty
// installation only warns.
func (e *Engine) checkBaseline(ds *config.Dataset, image []byte) error {
	backup, err := os.ReadFile(ds.BackupPath())
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if integrity.Digest(backup) == e.cleanDigest {
		log.Info().Str("dataset", ds.Name).Msg("backup matches clean baseline")
		return nil
	}

	if workingDigest := integrity.Digest(image); workingDigest == e.cleanDigest {
		if err := commit(ds.BackupPath(), image); err != nil {
			return fmt.Errorf("refresh backup: %w", err)
		}
		log.Info().
			Str("dataset", ds.Name).
			Msg("working executable is clean, backup refreshed from it")
		return nil
	}

	log.Warn().
		Str("dataset", ds.Name).
		Str("digest", integrity.Digest(backup)).
		Str("expected", e.cleanDigest).
		Msg("client is not a recognized clean baseline; patch addresses are unverified")
	return nil
}

// injectExtension truncates the image to the extension boundary and
// copies the companion module next to the executable. A missing module
// file is a fatal configuration error.
func (e *Engine) injectExtension(ds *config.Dataset, image []byte) ([]byte, error) {
	if _, err := os.Stat(e.modulePath); err != nil {
		return nil, &config.DatasetError{
			Dataset: ds.Name,
			Message: fmt.Sprintf("extension enabled but module missing at %s", e.modulePath),
			Cause:   err,
		}
	}

	if int64(len(image)) > ExtensionBoundary {
		image = image[:ExtensionBoundary]
	}

	if err := copyFile(e.modulePath, ds.ExtensionPath()); err != nil {
		return nil, fmt.Errorf("install extension module: %w", err)
	}
	log.Info().
		Str("dataset", ds.Name).
		Str("module", ds.ExtensionPath()).
		Msg("extension module injected")
	return image, nil
}

// applyEdits writes every enabled category's edits into the image.
// Category order is catalog order; edit order is category-declared order.
func (e *Engine) applyEdits(ds *config.Dataset, image []byte) error {
	enabled := make(map[string]bool, len(ds.Patches))
	for _, name := range ds.Patches {
		enabled[name] = true
	}

	var selected []Category
	for _, cat := range e.catalog.CategoriesFor(ds.Build) {
		if enabled[cat.Name] {
			selected = append(selected, cat)
		}
	}

	// All range checks happen before the first byte is written.
	size := int64(len(image))
	for _, cat := range selected {
		for _, edit := range cat.Edits {
			if edit.Address+int64(len(edit.Values)) > size {
				return &CatalogError{
					Build:    ds.Build,
					Category: cat.Name,
					Message: fmt.Sprintf("edit at 0x%x (%d bytes) exceeds image size %d",
						edit.Address, len(edit.Values), size),
				}
			}
		}
	}

	for _, cat := range selected {
		for _, edit := range cat.Edits {
			copy(image[edit.Address:], edit.Values)
		}
		log.Debug().
			Str("dataset", ds.Name).
			Str("category", cat.Name).
			Int("edits", len(cat.Edits)).
			Msg("patch category applied")
	}
	return nil
}

// commit writes data to path through a temp file and rename in the same
// directory.
func commit(path string, data []byte) error {
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

	if err := os.Chmod(tmpPath, 0755); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// copyFile copies src to dst verbatim.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0755)
}
