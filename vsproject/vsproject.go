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

// Package vsproject parses Visual Studio project files (.vcproj for
// VS2005, .vcxproj for VS2008 and later) into the configuration record the
// cleaner consumes: member files, include directories, predefined macros,
// and forced includes.
package vsproject

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/cxxclean/cxxclean/internal/paths"
)

// Configuration is the compiler configuration of one build mode, e.g.
// "Debug|Win32". Only the first configuration of a project is consumed.
type Configuration struct {
	Mode          string
	ForceIncludes []string
	PreDefines    []string
	SearchDirs    []string
	ExtraOptions  []string
}

// Project is a parsed Visual Studio project.
type Project struct {
	// Path is the project file itself; Dir its directory.
	Path string
	Dir  string
	// Version is 2005 for .vcproj and 2008 for .vcxproj shapes.
	Version int

	Configs []Configuration
	Headers []string
	Sources []string
}

// FirstConfig returns the configuration the cleaner uses, or nil.
func (p *Project) FirstConfig() *Configuration {
	if len(p.Configs) == 0 {
		return nil
	}
	return &p.Configs[0]
}

// AllFiles returns headers and sources, sources first.
func (p *Project) AllFiles() []string {
	out := make([]string, 0, len(p.Sources)+len(p.Headers))
	out = append(out, p.Sources...)
	out = append(out, p.Headers...)
	return out
}

// Parse reads and parses a project file, dispatching on its extension.
func Parse(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project: %w", err)
	}
	return ParseData(path, data)
}

// ParseData parses project-file contents; path supplies the extension and
// the project directory.
func ParseData(path string, data []byte) (*Project, error) {
	p := &Project{
		Path: paths.Normalize(path),
		Dir:  paths.Dir(paths.Normalize(path)),
	}
	var err error
	switch paths.Ext(path) {
	case ".vcproj":
		p.Version = 2005
		err = p.parseVcproj(data)
	case ".vcxproj":
		p.Version = 2008
		err = p.parseVcxproj(data)
	default:
		return nil, fmt.Errorf("%s: not a Visual Studio project (expected .vcproj or .vcxproj)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range p.Configs {
		p.Configs[i].fix()
	}
	return p, nil
}

// fix applies the placeholder rules: $(ProjectDir) and $(SolutionDir)
// expand to the empty string (the project directory is the working
// directory), trailing $(NOINHERIT) and %(...) inheritance entries drop,
// and empty entries vanish.
func (c *Configuration) fix() {
	c.SearchDirs = fixList(c.SearchDirs)
	c.PreDefines = fixList(c.PreDefines)
	c.ForceIncludes = fixList(c.ForceIncludes)
	c.ExtraOptions = fixList(c.ExtraOptions)
}

func fixList(in []string) []string {
	out := in[:0]
	for _, v := range in {
		v = strings.ReplaceAll(v, "$(ProjectDir)", "")
		v = strings.ReplaceAll(v, "$(SolutionDir)", "")
		v = strings.TrimSpace(v)
		if v == "" || v == "$(NOINHERIT)" || strings.HasPrefix(v, "%(") {
			continue
		}
		out = append(out, v)
	}
	return out
}

// splitList splits a semicolon-separated MSBuild list.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// vcxproj (MSBuild) shapes.

type vcxProject struct {
	ItemGroups       []vcxItemGroup    `xml:"ItemGroup"`
	ItemDefGroups    []vcxItemDefGroup `xml:"ItemDefinitionGroup"`
	XMLName          xml.Name          `xml:"Project"`
	DefaultTargets   string            `xml:"DefaultTargets,attr,omitempty"`
	ToolsVersion     string            `xml:"ToolsVersion,attr,omitempty"`
	XmlnsPlaceholder string            `xml:"xmlns,attr,omitempty"`
}

type vcxItemGroup struct {
	Compiles []vcxFileItem `xml:"ClCompile"`
	Includes []vcxFileItem `xml:"ClInclude"`
}

type vcxFileItem struct {
	Include string `xml:"Include,attr"`
}

type vcxItemDefGroup struct {
	Condition string     `xml:"Condition,attr,omitempty"`
	ClCompile vcxCompile `xml:"ClCompile"`
}

type vcxCompile struct {
	AdditionalIncludeDirectories string `xml:"AdditionalIncludeDirectories,omitempty"`
	PreprocessorDefinitions      string `xml:"PreprocessorDefinitions,omitempty"`
	ForcedIncludeFiles           string `xml:"ForcedIncludeFiles,omitempty"`
	AdditionalOptions            string `xml:"AdditionalOptions,omitempty"`
}

func (p *Project) parseVcxproj(data []byte) error {
	var doc vcxProject
	if err := xml.Unmarshal(data, &doc); err != nil {
		return err
	}
	for _, group := range doc.ItemGroups {
		for _, item := range group.Compiles {
			if item.Include != "" {
				p.Sources = append(p.Sources, p.memberPath(item.Include))
			}
		}
		for _, item := range group.Includes {
			if item.Include != "" {
				p.Headers = append(p.Headers, p.memberPath(item.Include))
			}
		}
	}
	for _, def := range doc.ItemDefGroups {
		cfg := Configuration{
			Mode:          modeFromCondition(def.Condition),
			SearchDirs:    splitList(def.ClCompile.AdditionalIncludeDirectories),
			PreDefines:    splitList(def.ClCompile.PreprocessorDefinitions),
			ForceIncludes: splitList(def.ClCompile.ForcedIncludeFiles),
		}
		if opts := strings.Fields(def.ClCompile.AdditionalOptions); len(opts) > 0 {
			cfg.ExtraOptions = opts
		}
		p.Configs = append(p.Configs, cfg)
	}
	return nil
}

// modeFromCondition extracts Debug|Win32 from a condition such as
// '$(Configuration)|$(Platform)'=='Debug|Win32'.
func modeFromCondition(cond string) string {
	i := strings.Index(cond, "==")
	if i < 0 {
		return cond
	}
	return strings.Trim(cond[i+2:], "' ")
}

// vcproj (VS2005) shapes.

type vcpProject struct {
	XMLName        xml.Name           `xml:"VisualStudioProject"`
	Version        string             `xml:"Version,attr,omitempty"`
	Configurations []vcpConfiguration `xml:"Configurations>Configuration"`
	Files          vcpFiles           `xml:"Files"`
}

type vcpConfiguration struct {
	Name  string    `xml:"Name,attr"`
	Tools []vcpTool `xml:"Tool"`
}

type vcpTool struct {
	Name                         string `xml:"Name,attr"`
	AdditionalIncludeDirectories string `xml:"AdditionalIncludeDirectories,attr,omitempty"`
	PreprocessorDefinitions      string `xml:"PreprocessorDefinitions,attr,omitempty"`
	ForcedIncludeFiles           string `xml:"ForcedIncludeFiles,attr,omitempty"`
	AdditionalOptions            string `xml:"AdditionalOptions,attr,omitempty"`
}

type vcpFiles struct {
	Filters []vcpFilter `xml:"Filter"`
	Files   []vcpFile   `xml:"File"`
}

type vcpFilter struct {
	Filters []vcpFilter `xml:"Filter"`
	Files   []vcpFile   `xml:"File"`
}

type vcpFile struct {
	RelativePath string `xml:"RelativePath,attr"`
}

func (p *Project) parseVcproj(data []byte) error {
	var doc vcpProject
	if err := xml.Unmarshal(data, &doc); err != nil {
		return err
	}
	for _, cfg := range doc.Configurations {
		out := Configuration{Mode: cfg.Name}
		for _, tool := range cfg.Tools {
			if tool.Name != "VCCLCompilerTool" {
				continue
			}
			out.SearchDirs = splitList(tool.AdditionalIncludeDirectories)
			out.PreDefines = splitList(tool.PreprocessorDefinitions)
			out.ForceIncludes = splitList(tool.ForcedIncludeFiles)
			if opts := strings.Fields(tool.AdditionalOptions); len(opts) > 0 {
				out.ExtraOptions = opts
			}
		}
		p.Configs = append(p.Configs, out)
	}
	p.collectVcprojFiles(doc.Files.Files)
	for _, filter := range doc.Files.Filters {
		p.collectFilter(filter)
	}
	return nil
}

func (p *Project) collectFilter(f vcpFilter) {
	p.collectVcprojFiles(f.Files)
	for _, sub := range f.Filters {
		p.collectFilter(sub)
	}
}

func (p *Project) collectVcprojFiles(files []vcpFile) {
	for _, f := range files {
		if f.RelativePath == "" {
			continue
		}
		member := p.memberPath(f.RelativePath)
		switch paths.Ext(member) {
		case ".c", ".cc", ".cpp", ".cxx", ".c++", ".m", ".mm":
			p.Sources = append(p.Sources, member)
		default:
			p.Headers = append(p.Headers, member)
		}
	}
}

// memberPath resolves a project-relative member path against the project
// directory.
func (p *Project) memberPath(rel string) string {
	rel = paths.Normalize(rel)
	if paths.IsAbs(rel) {
		return rel
	}
	return paths.Join(p.Dir, rel)
}
