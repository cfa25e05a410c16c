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
	"path/filepath"

	"github.com/cxxclean/cxxclean/include"
	"github.com/cxxclean/cxxclean/internal/paths"
)

// SearchResult is a located source file: its canonical absolute path and
// raw contents.
type SearchResult struct {
	ResolvedPath string
	Contents     []byte
}

// Resolver locates and loads the files a front end needs: translation
// units by path and headers by #include spelling.
//
// Resolver implementations must be safe for concurrent use; translation
// units are analyzed in parallel.
type Resolver interface {
	// FindFile loads the file at the given path (absolute or relative to
	// the working directory).
	FindFile(path string) (SearchResult, error)
	// FindInclude resolves an #include spelling seen in a file inside
	// fromDir. Quoted includes (angled=false) search fromDir before the
	// configured directories.
	FindInclude(fromDir, spelling string, angled bool) (SearchResult, error)
}

// SourceResolver resolves includes against a header search configuration
// and loads contents through an optional Accessor, which exists so tests
// can supply fixture trees without touching the file system.
type SourceResolver struct {
	// Dirs is the header search configuration. May be nil when every
	// include is expected to resolve relative to its including file.
	Dirs *include.Dirs
	// Accessor loads a file's bytes given its lower-cased normalized
	// absolute path.
	// Nil means the real file system.
	Accessor func(path string) ([]byte, error)
}

var _ Resolver = (*SourceResolver)(nil)

// FindFile implements Resolver.
func (r *SourceResolver) FindFile(path string) (SearchResult, error) {
	abs := r.absolutize(path)
	data, err := r.access(abs)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{ResolvedPath: abs, Contents: data}, nil
}

// FindInclude implements Resolver.
func (r *SourceResolver) FindInclude(fromDir, spelling string, angled bool) (SearchResult, error) {
	resolved, ok := r.Dirs.Resolve(fromDir, spelling, angled, func(abs string) bool {
		_, err := r.access(abs)
		return err == nil
	})
	if !ok {
		return SearchResult{}, fmt.Errorf("%q: no such header in search path", spelling)
	}
	data, err := r.access(resolved)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{ResolvedPath: resolved, Contents: data}, nil
}

func (r *SourceResolver) absolutize(path string) string {
	p := paths.Normalize(path)
	if paths.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(filepath.FromSlash(p)); err == nil {
		return paths.Normalize(abs)
	}
	return p
}

func (r *SourceResolver) access(abs string) ([]byte, error) {
	if r.Accessor != nil {
		return r.Accessor(paths.Lower(abs))
	}
	return os.ReadFile(filepath.FromSlash(abs))
}

// SourceAccessorFromMap returns an Accessor backed by the given map of
// lower-cased normalized absolute path to contents. The map is used
// directly and must not be mutated once a run starts.
func SourceAccessorFromMap(srcs map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		src, ok := srcs[paths.Lower(path)]
		if !ok {
			return nil, os.ErrNotExist
		}
		return []byte(src), nil
	}
}
