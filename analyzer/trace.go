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

package analyzer

import (
	"context"
	"log/slog"
	"strings"
)

// trace dumps the analysis state at debug level: the include tree, the
// referenced names per use edge, namespace activity, and the computed
// minimal include sets. This is the -v 3+ output the tool's users debug
// their cleanups with.
func (a *Analysis) trace() {
	if !a.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	for _, id := range a.fset.IDs() {
		parent := a.parent(id)
		if !parent.IsValid() {
			continue
		}
		a.log.Debug("include",
			"file", a.fset.Path(id),
			"parent", a.fset.Path(parent),
			"line", a.includeLineNo(id))
	}

	for _, by := range sortedKeys(a.useNames) {
		for _, target := range sortedKeys(a.useNames[by]) {
			names := a.useNames[by][target]
			rendered := make([]string, 0, len(names))
			for _, n := range names {
				rendered = append(rendered, n.name)
			}
			a.log.Debug("uses",
				"by", a.fset.Path(by),
				"target", a.fset.Path(target),
				"names", strings.Join(rendered, ", "))
		}
	}

	for _, file := range sortedKeys(a.namespaces) {
		a.log.Debug("namespaces", "file", a.fset.Path(file), "declared", strings.Join(a.namespaces[file], ", "))
	}
	for _, file := range sortedKeys(a.usingNamespaces) {
		a.log.Debug("using namespace", "file", a.fset.Path(file), "nominated", strings.Join(a.usingNamespaces[file], ", "))
	}

	for _, top := range sortedKeys(a.minInclude) {
		keeps := make([]string, 0, len(a.minInclude[top]))
		for _, id := range a.minInclude[top].sorted() {
			keeps = append(keeps, a.fset.Path(id))
		}
		a.log.Debug("min include", "file", a.fset.Path(top), "keeps", strings.Join(keeps, ", "))
	}
}
