// Package config loads and persists bob's configuration file.
//
// The file lives in the bob config directory as config.json or
// config.toml; the parser is chosen by extension, JSON being the
// default. All keys are optional.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/paths"
)

// EnvConfigFile points bob at an explicit config file, bypassing discovery.
const EnvConfigFile = "BOB_CONFIG"

// DefaultRollbackLimit bounds the nightly rollback ring when the config
// does not say otherwise.
const DefaultRollbackLimit = 3

// DefaultMirror is the release download base.
const DefaultMirror = "https://github.com"

// Config holds all recognized options. Pointer fields distinguish
// "unset" from an explicit false/zero, which matters for the PATH
// integration prompt.
type Config struct {
	EnableNightlyInfo       *bool   `json:"enable_nightly_info,omitempty" toml:"enable_nightly_info,omitempty"`
	EnableReleaseBuild      *bool   `json:"enable_release_build,omitempty" toml:"enable_release_build,omitempty"`
	DownloadsLocation       string  `json:"downloads_location,omitempty" toml:"downloads_location,omitempty"`
	InstallationLocation    string  `json:"installation_location,omitempty" toml:"installation_location,omitempty"`
	VersionSyncFileLocation string  `json:"version_sync_file_location,omitempty" toml:"version_sync_file_location,omitempty"`
	GithubMirror            string  `json:"github_mirror,omitempty" toml:"github_mirror,omitempty"`
	RollbackLimit           *uint8  `json:"rollback_limit,omitempty" toml:"rollback_limit,omitempty"`
	AddNeovimBinaryToPath   *bool   `json:"add_neovim_binary_to_path,omitempty" toml:"add_neovim_binary_to_path,omitempty"`

	// path remembers where the config was loaded from so Save can
	// write the decision back to the same file.
	path string
}

// Load reads the config file if one exists. A missing file yields the
// zero config, not an error.
func Load() (*Config, error) {
	path := discover()
	if path == "" {
		return &Config{path: defaultPath()}, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads and parses the config at an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{path: path}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrConfigLoad, "cannot read config file %s", path)
	}

	cfg := &Config{path: path}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "cannot parse config file %s", path)
	}

	cfg.expandEnv()
	return cfg, nil
}

// Save writes the config back to the file it was loaded from,
// creating parent directories as needed.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = defaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrConfigWrite, "cannot create config directory")
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(c.path), ".toml") {
		data, err = toml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrConfigWrite, "cannot encode config")
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrConfigWrite, "cannot write config file %s", c.path)
	}
	return nil
}

// Mirror returns the release download base URL.
func (c *Config) Mirror() string {
	if c.GithubMirror != "" {
		return strings.TrimRight(c.GithubMirror, "/")
	}
	return DefaultMirror
}

// RollbackRingSize returns the configured rollback limit or the default.
func (c *Config) RollbackRingSize() int {
	if c.RollbackLimit != nil {
		return int(*c.RollbackLimit)
	}
	return DefaultRollbackLimit
}

// NightlyInfo reports whether commit logs between nightlies should print.
func (c *Config) NightlyInfo() bool {
	return c.EnableNightlyInfo != nil && *c.EnableNightlyInfo
}

// ReleaseBuild reports whether source builds use CMAKE_BUILD_TYPE=Release.
// When set, installing nightly also builds from source instead of
// downloading the prebuilt archive.
func (c *Config) ReleaseBuild() bool {
	return c.EnableReleaseBuild != nil && *c.EnableReleaseBuild
}

// Paths constructs the path set implied by this config.
func (c *Config) Paths() (paths.Paths, error) {
	return paths.New(c.DownloadsLocation, c.InstallationLocation)
}

var envPattern = regexp.MustCompile(`\$[A-Z_]+`)

// expandEnv substitutes $UPPER_CASE references in string options with
// the corresponding environment variable.
func (c *Config) expandEnv() {
	for _, field := range []*string{
		&c.DownloadsLocation,
		&c.InstallationLocation,
		&c.VersionSyncFileLocation,
		&c.GithubMirror,
	} {
		*field = envPattern.ReplaceAllStringFunc(*field, func(m string) string {
			return os.Getenv(m[1:])
		})
	}
}

// discover probes for an existing config file.
func discover() string {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return path
	}
	dir := paths.ConfigDir()
	for _, name := range []string{"config.json", "config.toml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func defaultPath() string {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return path
	}
	return filepath.Join(paths.ConfigDir(), "config.json")
}
