// Copyright 2016-2024 The cxxclean Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cxxclean

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"

	"github.com/cxxclean/cxxclean/include"
	"github.com/cxxclean/cxxclean/internal/paths"
)

var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true,
	".c++": true, ".m": true, ".mm": true,
}

var headerExts = map[string]bool{
	".h": true, ".hh": true, ".hpp": true, ".hxx": true, ".inl": true,
}

// IsCppSource reports whether the path names a translation-unit root.
func IsCppSource(path string) bool {
	return sourceExts[paths.Ext(path)]
}

// IsCppFile reports whether the path names any C/C++ file.
func IsCppFile(path string) bool {
	ext := paths.Ext(path)
	return sourceExts[ext] || headerExts[ext]
}

// Config is the effective configuration of one run, assembled from the
// command line, an optional .cxxclean.toml, and a Visual Studio project.
type Config struct {
	// AllowCleanDir permits every C++ file below the directory. When
	// empty, AllowCleanFiles is the authoritative set.
	AllowCleanDir string
	// AllowCleanFiles is an explicit allow-clean set of lower-cased
	// canonical paths.
	AllowCleanFiles map[string]struct{}
	// OnlyCpp restricts the allow-clean set to source files, leaving
	// headers untouched.
	OnlyCpp bool
	// SkipGlobs are doublestar patterns of files excluded from rewriting.
	SkipGlobs []string
	// PCHStems are lower-cased precompiled-header file-name stems.
	PCHStems []string
	// SearchDirs is the header search configuration.
	SearchDirs *include.Dirs
	// ForceIncludes are files injected before each TU's first line.
	ForceIncludes []string
	// Predefines are NAME or NAME=VALUE macro definitions.
	Predefines []string
	// DryRun computes and reports edits without writing.
	DryRun bool
	// Verbose is the log verbosity, 0-6.
	Verbose int
}

// CanClean reports whether the file (lower-cased canonical path) belongs
// to the allow-clean set.
func (c *Config) CanClean(lower string) bool {
	if c.IsSkipped(lower) {
		return false
	}
	if c.OnlyCpp {
		if !IsCppSource(lower) {
			return false
		}
	} else if !IsCppFile(lower) {
		return false
	}
	if c.AllowCleanDir != "" {
		_, ok := paths.HasDirPrefix(lower, paths.Lower(c.AllowCleanDir))
		return ok
	}
	_, ok := c.AllowCleanFiles[lower]
	return ok
}

// IsSkipped matches the file against the --skip patterns. A pattern
// without a path separator matches against the base name, mirroring the
// way the original tool's skip list is usually written.
func (c *Config) IsSkipped(lower string) bool {
	for _, glob := range c.SkipGlobs {
		pattern := paths.Lower(paths.Normalize(glob))
		target := lower
		if !hasSlash(pattern) {
			target = paths.Base(lower)
		}
		if ok, err := doublestar.Match(pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}

func hasSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}

// AllowFile adds one file to the explicit allow-clean set.
func (c *Config) AllowFile(path string) {
	if c.AllowCleanFiles == nil {
		c.AllowCleanFiles = make(map[string]struct{})
	}
	c.AllowCleanFiles[paths.Lower(paths.Normalize(path))] = struct{}{}
}

// FileConfig is the optional .cxxclean.toml, read from the project root.
// Command-line flags override its values.
type FileConfig struct {
	// PCHStems replaces the default precompiled-header stem list.
	PCHStems []string `toml:"pch_stems"`
	// Skip adds skip globs.
	Skip []string `toml:"skip"`
	// SearchDirs adds user header search directories.
	SearchDirs []string `toml:"search_dirs"`
}

// DefaultConfigName is the file name probed in the project root.
const DefaultConfigName = ".cxxclean.toml"

// LoadFileConfig reads a FileConfig. A missing file is not an error and
// yields the zero value.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// Apply folds the file config into the run config without overriding
// anything set on the command line.
func (fc FileConfig) Apply(c *Config) {
	if len(c.PCHStems) == 0 && len(fc.PCHStems) > 0 {
		for _, stem := range fc.PCHStems {
			c.PCHStems = append(c.PCHStems, paths.Lower(stem))
		}
	}
	c.SkipGlobs = append(c.SkipGlobs, fc.Skip...)
	if len(fc.SearchDirs) > 0 {
		dirs := c.SearchDirs.Ordered()
		for _, d := range fc.SearchDirs {
			dirs = append(dirs, include.Dir{Path: d, Kind: include.User})
		}
		c.SearchDirs = include.NewDirs(dirs)
	}
}
