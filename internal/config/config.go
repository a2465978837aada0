// Package config loads clientforge settings from clientforge.yaml via viper.
//
// The file carries global operator settings (distribution directory, wine
// binary, autostart) and a map of datasets. A dataset is one named server
// deployment: the client installation it owns, the patch selection for it,
// and its reserved development overlay slot.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Well-known file names inside a client installation.
const (
	ClientExecutable = "WoW.exe"
	BackupSuffix     = ".clean"
	ExtensionModule  = "extension.dll"
	RealmlistFile    = "realmlist.wtf"
	DataDirName      = "Data"
	CacheDirName     = "Cache"
	AddonDirName     = "Interface/AddOns"
)

// Config is the root of the loaded configuration.
type Config struct {
	// LogLevel is a zerolog level name ("debug", "info", ...).
	LogLevel string `mapstructure:"log_level"`
	// DistDir holds distributable artifacts: the extension module,
	// patches.lua, and the addons/ tree installed into clients.
	DistDir string `mapstructure:"dist_dir"`
	// Wine is the compatibility launcher used on non-Windows hosts.
	Wine string `mapstructure:"wine"`
	// Keyring is an optional armored keyring used to verify the patch
	// catalog signature. Empty disables verification.
	Keyring string `mapstructure:"keyring"`

	Autostart Autostart           `mapstructure:"autostart"`
	Datasets  map[string]*Dataset `mapstructure:"datasets"`
}

// Autostart describes the optional one-shot startup performed when the
// bare root command runs.
type Autostart struct {
	Dataset string `mapstructure:"dataset"`
	Count   int    `mapstructure:"count"`
	IP      string `mapstructure:"ip"`
}

// Dataset is the configuration of one server deployment.
type Dataset struct {
	// Name is the map key, filled in after unmarshaling.
	Name string `mapstructure:"-"`

	// InstallPath is the root of the client installation.
	InstallPath string `mapstructure:"install_path"`
	// Build identifies the client build the patch catalog is keyed by.
	Build string `mapstructure:"build"`
	// Patches lists the enabled patch category names.
	Patches []string `mapstructure:"patches"`
	// Extension enables injection of the companion extension module.
	Extension bool `mapstructure:"extension"`
	// DevSlot is the reserved development overlay slot letter.
	DevSlot string `mapstructure:"dev_slot"`
	// Locale is the client locale, e.g. "enUS".
	Locale string `mapstructure:"locale"`
	// LocaleScoped selects locale-scoped overlay archive paths.
	LocaleScoped bool `mapstructure:"locale_scoped"`
}

// DatasetError is a configuration error scoped to one dataset.
// It always names the dataset so the operator knows which deployment
// to fix.
type DatasetError struct {
	Dataset string
	Message string
	Cause   error
}

func (e *DatasetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("dataset %q: %s: %v", e.Dataset, e.Message, e.Cause)
	}
	return fmt.Sprintf("dataset %q: %s", e.Dataset, e.Message)
}

func (e *DatasetError) Unwrap() error { return e.Cause }

// Load reads the configuration file at path. When path is empty, a
// clientforge.yaml in the working directory is used. Environment variables
// prefixed CLIENTFORGE_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("dist_dir", "dist")
	v.SetDefault("wine", "wine")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("clientforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("clientforge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit path is not.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for name, ds := range cfg.Datasets {
		if ds == nil {
			cfg.Datasets[name] = &Dataset{Name: name}
			continue
		}
		ds.Name = name
	}

	return cfg, nil
}

// Dataset returns the named dataset or a DatasetError when it is unknown
// or incomplete.
func (c *Config) Dataset(name string) (*Dataset, error) {
	ds, ok := c.Datasets[name]
	if !ok {
		return nil, &DatasetError{Dataset: name, Message: "not configured"}
	}
	if ds.InstallPath == "" {
		return nil, &DatasetError{Dataset: name, Message: "install_path is not set"}
	}
	return ds, nil
}

// CatalogPath returns the location of the Lua patch catalog in the
// distribution tree.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DistDir, "patches.lua")
}

// ExtensionModulePath returns the distribution path of the companion
// extension module.
func (c *Config) ExtensionModulePath() string {
	return filepath.Join(c.DistDir, ExtensionModule)
}

// AddonDistDir returns the distribution directory holding add-ons to
// install into clients.
func (c *Config) AddonDistDir() string {
	return filepath.Join(c.DistDir, "addons")
}

// ExePath returns the working client executable path.
func (d *Dataset) ExePath() string {
	return filepath.Join(d.InstallPath, ClientExecutable)
}

// BackupPath returns the pristine-backup path of the client executable.
func (d *Dataset) BackupPath() string {
	return d.ExePath() + BackupSuffix
}

// ExtensionPath returns the in-installation path of the extension module.
func (d *Dataset) ExtensionPath() string {
	return filepath.Join(d.InstallPath, ExtensionModule)
}

// DataDir returns the overlay archive directory of the installation.
func (d *Dataset) DataDir() string {
	return filepath.Join(d.InstallPath, DataDirName)
}

// CacheDir returns the client cache directory.
func (d *Dataset) CacheDir() string {
	return filepath.Join(d.InstallPath, CacheDirName)
}

// AddonDir returns the client add-on directory.
func (d *Dataset) AddonDir() string {
	return filepath.Join(d.InstallPath, filepath.FromSlash(AddonDirName))
}

// RealmlistPath returns the realm-connection file of the installation.
func (d *Dataset) RealmlistPath() string {
	return filepath.Join(d.InstallPath, RealmlistFile)
}
