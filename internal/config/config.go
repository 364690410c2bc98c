// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package config holds the annostore settings: a TOML file overlaid by
// environment variables and command line flags.
package config

import (
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"

	"annostore.io/annostore/internal/logging"
)

// Error is the config error class.
var Error = errs.Class("config")

// FileName is the settings file looked up in the working directory.
const FileName = ".annostore.toml"

// EnvPrefix prefixes every environment variable, e.g. ANNOSTORE_STORE_URL.
const EnvPrefix = "ANNOSTORE"

// Config is the complete annostore configuration.
type Config struct {
	Log    logging.Config `toml:"log"`
	Store  Store          `toml:"store"`
	Import Import         `toml:"import"`
	Export Export         `toml:"export"`
}

// Store selects the save point backend.
type Store struct {
	// URL is one of mem://, bolt://path or redis://host:port?db=N.
	URL    string `toml:"url"`
	Bucket string `toml:"bucket,omitempty"`
}

// Import configures GeoJSON import.
type Import struct {
	Strict     bool `toml:"strict"`
	FixInvalid bool `toml:"fix-invalid"`
	LegacyIDs  bool `toml:"legacy-ids"`
}

// Export configures GeoJSON export and saving.
type Export struct {
	Legacy   bool `toml:"legacy"`
	Compress bool `toml:"compress"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:   logging.Defaults(),
		Store: Store{URL: "bolt://annostore.db"},
		Import: Import{
			LegacyIDs: true,
		},
	}
}

// Load reads path on top of Default. A missing file is not an error.
func Load(path string) (Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	_, err := toml.DecodeFile(path, &config)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, Error.New("%s: %v", path, err)
	}
	return config, nil
}

// Validate checks the logging settings and the store url.
func (config Config) Validate() error {
	if err := config.Log.Validate(); err != nil {
		return Error.Wrap(err)
	}

	u, err := url.Parse(config.Store.URL)
	if err != nil {
		return Error.New("invalid store.url %q: %v", config.Store.URL, err)
	}
	switch u.Scheme {
	case "mem", "redis":
	case "bolt":
		if u.Host+u.Path == "" {
			return Error.New("store.url %q is missing a path", config.Store.URL)
		}
	default:
		return Error.New("unsupported store.url scheme %q", u.Scheme)
	}
	return nil
}

// WriteTOML writes config to w.
func (config Config) WriteTOML(w io.Writer) error {
	return Error.Wrap(toml.NewEncoder(w).Encode(config))
}

// Save writes config to path.
func (config Config) Save(path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(file.Close())) }()
	return config.WriteTOML(file)
}

// RegisterFlags adds a flag for every setting, with defaults taken from config.
func RegisterFlags(flags *pflag.FlagSet, config Config) {
	flags.String("log.level", config.Log.Level, "minimum log level")
	flags.String("log.encoding", config.Log.Encoding, "log encoding, console or json")
	flags.Bool("log.development", config.Log.Development, "development logging")
	flags.String("log.output", config.Log.Output, "log output path")
	flags.String("store.url", config.Store.URL, "save point store: mem://, bolt://path or redis://host:port?db=N")
	flags.String("store.bucket", config.Store.Bucket, "bolt bucket name")
	flags.Bool("import.strict", config.Import.Strict, "fail the whole import when any record is skipped")
	flags.Bool("import.fix-invalid", config.Import.FixInvalid, "repair invalid geometries on import")
	flags.Bool("import.legacy-ids", config.Import.LegacyIDs, "infer object types from legacy record ids")
	flags.Bool("export.legacy", config.Export.Legacy, "export records in the legacy layout")
	flags.Bool("export.compress", config.Export.Compress, "compress saved entries with zstd")
}

// Bind returns a viper instance reading flags and ANNOSTORE_* environment variables.
func Bind(flags *pflag.FlagSet) (*viper.Viper, error) {
	vip := viper.New()
	if err := vip.BindPFlags(flags); err != nil {
		return nil, Error.Wrap(err)
	}
	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()
	return vip, nil
}

// Overlay returns config with every setting explicitly set in vip applied.
// Flags left at their defaults do not override the file.
func Overlay(config Config, vip *viper.Viper) Config {
	str := func(key string, dst *string) {
		if vip.IsSet(key) {
			*dst = vip.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if vip.IsSet(key) {
			*dst = vip.GetBool(key)
		}
	}

	str("log.level", &config.Log.Level)
	str("log.encoding", &config.Log.Encoding)
	boolean("log.development", &config.Log.Development)
	str("log.output", &config.Log.Output)
	str("store.url", &config.Store.URL)
	str("store.bucket", &config.Store.Bucket)
	boolean("import.strict", &config.Import.Strict)
	boolean("import.fix-invalid", &config.Import.FixInvalid)
	boolean("import.legacy-ids", &config.Import.LegacyIDs)
	boolean("export.legacy", &config.Export.Legacy)
	boolean("export.compress", &config.Export.Compress)
	return config
}
