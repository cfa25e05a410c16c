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
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vcxprojSample = `<?xml version="1.0" encoding="utf-8"?>
<Project DefaultTargets="Build" ToolsVersion="14.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <ItemGroup>
    <ClCompile Include="src\main.cpp" />
    <ClCompile Include="src\util.cpp" />
    <ClInclude Include="src\util.h" />
  </ItemGroup>
  <ItemDefinitionGroup Condition="'$(Configuration)|$(Platform)'=='Debug|Win32'">
    <ClCompile>
      <AdditionalIncludeDirectories>$(ProjectDir)include;..\third_party;%(AdditionalIncludeDirectories)</AdditionalIncludeDirectories>
      <PreprocessorDefinitions>WIN32;_DEBUG;$(NOINHERIT)</PreprocessorDefinitions>
      <ForcedIncludeFiles>stdafx.h</ForcedIncludeFiles>
    </ClCompile>
  </ItemDefinitionGroup>
  <ItemDefinitionGroup Condition="'$(Configuration)|$(Platform)'=='Release|Win32'">
    <ClCompile>
      <PreprocessorDefinitions>WIN32;NDEBUG</PreprocessorDefinitions>
    </ClCompile>
  </ItemDefinitionGroup>
</Project>`

func TestParseVcxproj(t *testing.T) {
	t.Parallel()
	p, err := ParseData(`C:\work\hello\hello.vcxproj`, []byte(vcxprojSample))
	require.NoError(t, err)

	assert.Equal(t, 2008, p.Version)
	assert.Equal(t, `C:/work/hello`, p.Dir)
	assert.Equal(t, []string{`C:/work/hello/src/main.cpp`, `C:/work/hello/src/util.cpp`}, p.Sources)
	assert.Equal(t, []string{`C:/work/hello/src/util.h`}, p.Headers)

	require.Len(t, p.Configs, 2)
	first := p.FirstConfig()
	require.NotNil(t, first)
	assert.Equal(t, "Debug|Win32", first.Mode)
	// $(ProjectDir) expands to "", %(...) and $(NOINHERIT) entries drop
	assert.Equal(t, []string{"include", `..\third_party`}, first.SearchDirs)
	assert.Equal(t, []string{"WIN32", "_DEBUG"}, first.PreDefines)
	assert.Equal(t, []string{"stdafx.h"}, first.ForceIncludes)
}

const vcprojSample = `<?xml version="1.0" encoding="utf-8"?>
<VisualStudioProject ProjectType="Visual C++" Version="8.00" Name="hello">
  <Configurations>
    <Configuration Name="Debug|Win32">
      <Tool Name="VCPreBuildEventTool" />
      <Tool Name="VCCLCompilerTool"
        AdditionalIncludeDirectories="$(SolutionDir)shared;.\include"
        PreprocessorDefinitions="WIN32;_DEBUG"
        ForcedIncludeFiles="stdafx.h" />
    </Configuration>
  </Configurations>
  <Files>
    <Filter Name="Source Files">
      <File RelativePath=".\hello.cpp" />
      <Filter Name="Detail">
        <File RelativePath=".\detail\impl.cpp" />
      </Filter>
    </Filter>
    <Filter Name="Header Files">
      <File RelativePath=".\hello.h" />
    </Filter>
  </Files>
</VisualStudioProject>`

func TestParseVcproj(t *testing.T) {
	t.Parallel()
	p, err := ParseData(`/work/hello/hello.vcproj`, []byte(vcprojSample))
	require.NoError(t, err)

	assert.Equal(t, 2005, p.Version)
	require.Len(t, p.Configs, 1)
	cfg := p.FirstConfig()
	assert.Equal(t, "Debug|Win32", cfg.Mode)
	assert.Equal(t, []string{"shared", `.\include`}, cfg.SearchDirs)
	assert.Equal(t, []string{"WIN32", "_DEBUG"}, cfg.PreDefines)
	assert.Equal(t, []string{"stdafx.h"}, cfg.ForceIncludes)

	assert.ElementsMatch(t, []string{"/work/hello/hello.cpp", "/work/hello/detail/impl.cpp"}, p.Sources)
	assert.Equal(t, []string{"/work/hello/hello.h"}, p.Headers)
	assert.Len(t, p.AllFiles(), 3)
}

func TestParseRejectsUnknownExtension(t *testing.T) {
	t.Parallel()
	_, err := ParseData("/work/hello/hello.sln", []byte("<xml/>"))
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	p, err := ParseData(`/work/hello/hello.vcxproj`, []byte(vcxprojSample))
	require.NoError(t, err)

	data, err := p.Serialize()
	require.NoError(t, err)

	p2, err := ParseData(p.Path, data)
	require.NoError(t, err)

	if diff := cmp.Diff(p.Configs, p2.Configs); diff != "" {
		t.Errorf("configs changed across round trip (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(p.Sources, p2.Sources); diff != "" {
		t.Errorf("sources changed across round trip:\n%s", diff)
	}
	if diff := cmp.Diff(p.Headers, p2.Headers); diff != "" {
		t.Errorf("headers changed across round trip:\n%s", diff)
	}
}

func TestPrint(t *testing.T) {
	t.Parallel()
	p, err := ParseData(`/work/hello/hello.vcxproj`, []byte(vcxprojSample))
	require.NoError(t, err)

	var buf bytes.Buffer
	p.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "Debug|Win32")
	assert.Contains(t, out, "stdafx.h")
	assert.Contains(t, out, "/work/hello/src/main.cpp")
}
