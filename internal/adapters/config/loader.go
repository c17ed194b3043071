// Package config provides the configuration loader for pycheck.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/pycheck/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Load reads the project configuration from the given working directory
// and resolves it against the defaults. A missing config file is not an
// error: the defaults alone make a valid configuration.
func Load(cwd string) (domain.Options, error) {
	opts := Defaults()

	path := filepath.Join(cwd, domain.ConfigFileName)
	data, err := os.ReadFile(path) //nolint:gosec // path is rooted in the user's cwd
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return opts, nil
		}
		return domain.Options{}, zerr.Wrap(domain.ErrConfigReadFailed, path+": "+err.Error())
	}

	if err := yaml.Unmarshal(data, &opts); err != nil {
		return domain.Options{}, zerr.Wrap(domain.ErrConfigParseFailed, path+": "+err.Error())
	}
	return normalize(opts)
}

// Defaults returns the configuration used when no config file exists.
func Defaults() domain.Options {
	return domain.Options{
		SourceRoots:   []string{"."},
		CacheDir:      domain.DefaultCachePath(),
		Workers:       0,
		IdleTimeout:   domain.DefaultIdleTimeout,
		FollowImports: "normal",
		StatusFile:    domain.DefaultStatusFilePath(),
	}
}

func normalize(opts domain.Options) (domain.Options, error) {
	if len(opts.SourceRoots) == 0 {
		opts.SourceRoots = []string{"."}
	}
	if opts.CacheDir == "" {
		opts.CacheDir = domain.DefaultCachePath()
	}
	if opts.StatusFile == "" {
		opts.StatusFile = domain.DefaultStatusFilePath()
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = domain.DefaultIdleTimeout
	}
	if opts.Workers < 0 {
		return domain.Options{}, zerr.Wrap(domain.ErrConfigParseFailed, "workers must not be negative")
	}
	switch opts.FollowImports {
	case "":
		opts.FollowImports = "normal"
	case "normal", "skip":
	default:
		return domain.Options{}, zerr.Wrap(domain.ErrConfigParseFailed,
			"follow_imports must be \"normal\" or \"skip\", got "+opts.FollowImports)
	}
	return opts, nil
}
