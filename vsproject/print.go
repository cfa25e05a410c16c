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

package vsproject

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Print writes the resolved configuration in the --print-vs format.
func (p *Project) Print(w io.Writer) {
	fmt.Fprintf(w, "project: %s (version %d)\n", p.Path, p.Version)
	for i, cfg := range p.Configs {
		marker := " "
		if i == 0 {
			marker = "*" // the configuration the cleaner consumes
		}
		fmt.Fprintf(w, "%s configuration %q\n", marker, cfg.Mode)
		printList(w, "    search dirs", cfg.SearchDirs)
		printList(w, "    predefines", cfg.PreDefines)
		printList(w, "    force includes", cfg.ForceIncludes)
		printList(w, "    extra options", cfg.ExtraOptions)
	}
	printList(w, "sources", p.Sources)
	printList(w, "headers", p.Headers)
}

func printList(w io.Writer, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", label, len(values))
	for _, v := range values {
		fmt.Fprintf(w, "%s    %s\n", strings.Repeat(" ", 2), v)
	}
}

// Serialize renders the project record as a canonical .vcxproj document.
// Parsing the output yields an equal record (placeholder expansion already
// happened and is not reversed).
func (p *Project) Serialize() ([]byte, error) {
	doc := vcxProject{}
	var group vcxItemGroup
	for _, src := range p.Sources {
		group.Compiles = append(group.Compiles, vcxFileItem{Include: src})
	}
	for _, hdr := range p.Headers {
		group.Includes = append(group.Includes, vcxFileItem{Include: hdr})
	}
	doc.ItemGroups = []vcxItemGroup{group}
	for _, cfg := range p.Configs {
		doc.ItemDefGroups = append(doc.ItemDefGroups, vcxItemDefGroup{
			Condition: fmt.Sprintf("'$(Configuration)|$(Platform)'=='%s'", cfg.Mode),
			ClCompile: vcxCompile{
				AdditionalIncludeDirectories: strings.Join(cfg.SearchDirs, ";"),
				PreprocessorDefinitions:      strings.Join(cfg.PreDefines, ";"),
				ForcedIncludeFiles:           strings.Join(cfg.ForceIncludes, ";"),
				AdditionalOptions:            strings.Join(cfg.ExtraOptions, " "),
			},
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
