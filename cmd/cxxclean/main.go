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

// Command cxxclean analyzes C++ translation units and removes the
// #include directives they do not need.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/cxxclean/cxxclean"
	"github.com/cxxclean/cxxclean/frontend"
	"github.com/cxxclean/cxxclean/include"
	"github.com/cxxclean/cxxclean/internal/paths"
	"github.com/cxxclean/cxxclean/report"
	"github.com/cxxclean/cxxclean/reporter"
	"github.com/cxxclean/cxxclean/vsproject"
)

func main() {
	app := &cli.App{
		Name:                   "cxxclean",
		Usage:                  "remove unnecessary #include directives from C++ projects",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "clean",
				Usage: "file or directory to clean; a directory makes every C++ source below it a translation unit",
			},
			&cli.StringFlag{
				Name:  "vs",
				Usage: "Visual Studio project file (.vcproj or .vcxproj) supplying translation units, include paths, predefines and forced includes",
			},
			&cli.BoolFlag{
				Name:  "no",
				Usage: "dry run: compute and report edits but write nothing",
			},
			&cli.BoolFlag{
				Name:  "onlycpp",
				Usage: "only clean source files (.c .cc .cpp .cxx .c++ .m .mm), leave headers untouched",
			},
			&cli.IntFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log verbosity, 0-6",
				Value:   1,
			},
			&cli.StringSliceFlag{
				Name:  "skip",
				Usage: "glob pattern of files to exclude from rewriting (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "print-vs",
				Usage: "dump the resolved Visual Studio configuration and exit",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "write the HTML report to this file",
				Value: "cxxclean.html",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "cxxclean:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cleanPath := c.String("clean")
	vsPath := c.String("vs")
	if cleanPath == "" && vsPath == "" {
		return fmt.Errorf("at least one of --clean or --vs is required")
	}

	setupLogging(c.Int("verbose"))

	cfg := &cxxclean.Config{
		OnlyCpp:   c.Bool("onlycpp"),
		SkipGlobs: c.StringSlice("skip"),
		DryRun:    c.Bool("no"),
		Verbose:   c.Int("verbose"),
	}

	// everything after "--" belongs to the C++ front end
	fe := parseFrontendArgs(c.Args().Slice())

	var tus []string
	var searchDirs []include.Dir

	if vsPath != "" {
		proj, err := vsproject.Parse(vsPath)
		if err != nil {
			return err
		}
		if c.Bool("print-vs") {
			proj.Print(os.Stdout)
			return nil
		}
		vsCfg := proj.FirstConfig()
		if vsCfg == nil {
			return fmt.Errorf("%s: project has no build configuration", vsPath)
		}
		for _, dir := range vsCfg.SearchDirs {
			searchDirs = append(searchDirs, include.Dir{Path: absAgainst(proj.Dir, dir), Kind: include.User})
		}
		fe.predefines = append(fe.predefines, vsCfg.PreDefines...)
		for _, forced := range vsCfg.ForceIncludes {
			fe.forceIncludes = append(fe.forceIncludes, absAgainst(proj.Dir, forced))
		}
		for _, member := range proj.AllFiles() {
			cfg.AllowFile(member)
			if cxxclean.IsCppSource(member) {
				tus = append(tus, member)
			}
		}
	}

	if cleanPath != "" {
		abs, err := filepath.Abs(cleanPath)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("--clean: %w", err)
		}
		if info.IsDir() {
			cfg.AllowCleanDir = paths.Normalize(abs)
			found, err := collectSources(abs)
			if err != nil {
				return err
			}
			tus = append(tus, found...)
		} else {
			cfg.AllowFile(paths.Normalize(abs))
			tus = append(tus, paths.Normalize(abs))
		}
	}

	if len(tus) == 0 {
		return fmt.Errorf("no translation units to analyze")
	}

	root := cfg.AllowCleanDir
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = paths.Normalize(wd)
		}
	}
	fileCfg, err := cxxclean.LoadFileConfig(filepath.Join(filepath.FromSlash(root), cxxclean.DefaultConfigName))
	if err != nil {
		return err
	}

	searchDirs = append(searchDirs, fe.searchDirs...)
	cfg.SearchDirs = include.NewDirs(searchDirs)
	cfg.ForceIncludes = fe.forceIncludes
	cfg.Predefines = fe.predefines
	fileCfg.Apply(cfg)

	resolver := &cxxclean.SourceResolver{Dirs: cfg.SearchDirs}
	cleaner := &cxxclean.Cleaner{
		Config:   cfg,
		Resolver: resolver,
		Driver: &frontend.Frontend{
			Resolver:      resolver,
			ForceIncludes: cfg.ForceIncludes,
			Predefines:    cfg.Predefines,
		},
		Reporter: reporter.NewReporter(
			func(err *reporter.PosError) error {
				slog.Warn(err.Error())
				return nil // keep analyzing; errors surface in the report
			},
			func(err *reporter.PosError) {
				slog.Debug(err.Error())
			},
		),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := cleaner.Clean(ctx, tus...)
	if err != nil {
		// analysis-level failures still exit zero; only configuration
		// errors do not
		slog.Error("run aborted", "err", err)
		return nil
	}

	if path := c.String("report"); path != "" {
		if err := writeReport(path, res, cfg.DryRun); err != nil {
			slog.Error("cannot write report", "path", path, "err", err)
		}
	}

	slog.Info("done",
		"translation_units", len(res.TUs),
		"rewritten", res.Written,
		"write_failures", res.WriteFailures)
	return nil
}

type frontendArgs struct {
	searchDirs    []include.Dir
	predefines    []string
	forceIncludes []string
}

// parseFrontendArgs interprets the compiler-style arguments after "--":
// -I / -isystem search dirs, -D predefines, -include forced includes.
// Anything else is ignored with a note; this front end has no use for it.
func parseFrontendArgs(args []string) frontendArgs {
	var out frontendArgs
	i := 0
	next := func(prefix, arg string) (string, bool) {
		if arg == prefix && i+1 < len(args) {
			i++
			return args[i], true
		}
		if strings.HasPrefix(arg, prefix) && len(arg) > len(prefix) {
			return arg[len(prefix):], true
		}
		return "", false
	}
	for ; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "-isystem"):
			if v, ok := next("-isystem", arg); ok {
				out.searchDirs = append(out.searchDirs, include.Dir{Path: absAgainst("", v), Kind: include.System})
			}
		case strings.HasPrefix(arg, "-I"):
			if v, ok := next("-I", arg); ok {
				out.searchDirs = append(out.searchDirs, include.Dir{Path: absAgainst("", v), Kind: include.User})
			}
		case strings.HasPrefix(arg, "-D"):
			if v, ok := next("-D", arg); ok {
				out.predefines = append(out.predefines, v)
			}
		case arg == "-include":
			if v, ok := next("-include", arg); ok {
				out.forceIncludes = append(out.forceIncludes, absAgainst("", v))
			}
		default:
			slog.Debug("ignoring front-end argument", "arg", arg)
		}
	}
	return out
}

// collectSources finds every C++ source below dir.
func collectSources(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if p := paths.Normalize(path); cxxclean.IsCppSource(p) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return out, nil
}

func absAgainst(base, p string) string {
	p = paths.Normalize(p)
	if paths.IsAbs(p) {
		return p
	}
	if base != "" {
		return paths.Join(base, p)
	}
	if abs, err := filepath.Abs(filepath.FromSlash(p)); err == nil {
		return paths.Normalize(abs)
	}
	return p
}

func setupLogging(verbose int) {
	level := slog.LevelWarn
	switch {
	case verbose >= 3:
		level = slog.LevelDebug
	case verbose == 2:
		level = slog.LevelInfo
	case verbose == 1:
		level = slog.LevelWarn
	default:
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func writeReport(path string, res *cxxclean.RunResult, dryRun bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	data := report.Build(res.Histories, res.Written, res.WriteFailures, dryRun)
	return report.Write(f, data)
}
