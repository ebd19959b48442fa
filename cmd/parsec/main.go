/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"parsec/internal/config"
	"parsec/internal/crash"
	"parsec/internal/export"
	applog "parsec/internal/log"
	"parsec/internal/scene"
	"parsec/internal/storage"
	"parsec/internal/ui"
	"parsec/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "Parsec - collaborative vector design editor")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  parsec version|-v|--version          Show version")
	fmt.Fprintln(w, "  parsec ui [<url>]                    Launch the desktop editor (build with -tags fyne)")
	fmt.Fprintln(w, "  parsec export svg|pdf|png <out>      Render the last cached workspace snapshot")
	fmt.Fprintln(w, "  parsec cache list [<n>]              List cached snapshots of the configured workspace")
	fmt.Fprintln(w, "  parsec cache prune [<keep>]          Keep only the newest snapshots per workspace")
}

func main() {
	applog.Init(applog.FromEnv())
	defer crash.Recover(nil)
	os.Exit(run(os.Args[1:], os.Stdout, config.Load))
}

// run executes one command and returns the process exit code.
func run(args []string, out io.Writer, load func() (config.AppConfig, string, error)) int {
	l := applog.WithComponent("cli")
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(out)
		return 0
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(out, "Parsec")
		fmt.Fprintln(out, version.String())
		return 0
	case "help", "--help", "-h":
		usage(out)
		return 0
	}

	cfg, _, err := load()
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	applog.Init(cfg.LogOptions())
	l = applog.WithComponent("cli")

	switch args[0] {
	case "ui":
		var url string
		if len(args) >= 2 {
			url = args[1]
		}
		if err := ui.Run(url); err != nil {
			fmt.Fprintln(out, "Error:", err)
			return 1
		}
		return 0
	case "export":
		if len(args) < 3 {
			fmt.Fprintln(out, "export requires <format> and <out>")
			usage(out)
			return 2
		}
		f, err := export.ParseFormat(args[1])
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			return 2
		}
		if err := exportLatest(cfg, f, args[2]); err != nil {
			l.Error("export failed", slog.Any("err", err))
			fmt.Fprintln(out, "Error:", err)
			return 1
		}
		fmt.Fprintf(out, "Exported %s to %s\n", f, args[2])
		return 0
	case "cache":
		if len(args) < 2 {
			fmt.Fprintln(out, "cache requires list or prune")
			usage(out)
			return 2
		}
		return cacheCommand(cfg, args[1], args[2:], out)
	}

	usage(out)
	return 2
}

func openCache(cfg config.AppConfig) (*storage.Cache, error) {
	path, err := cfg.CachePath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

func exportLatest(cfg config.AppConfig, f export.Format, out string) error {
	c, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snap, at, ok, err := c.LatestWorkspace(ctx, cfg.Server.Workspace)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no cached snapshot for workspace %q; open it in the editor first", cfg.Server.Workspace)
	}
	applog.WithComponent("cli").Info("exporting cached snapshot",
		slog.String("workspace", cfg.Server.Workspace), slog.Time("at", at), slog.Int("elements", len(snap.Elements)))

	m := scene.NewModel()
	m.Replace(snap)
	return export.ToFile(f, m, out, export.Options{})
}

func cacheCommand(cfg config.AppConfig, sub string, rest []string, out io.Writer) int {
	n := 0
	if len(rest) > 0 {
		v, err := strconv.Atoi(rest[0])
		if err != nil || v < 0 {
			fmt.Fprintf(out, "invalid count %q\n", rest[0])
			return 2
		}
		n = v
	}
	c, err := openCache(cfg)
	if err != nil {
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch sub {
	case "list":
		if n == 0 {
			n = 20
		}
		entries, err := c.ListWorkspaces(ctx, cfg.Server.Workspace, n)
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			return 1
		}
		fmt.Fprintf(out, "Workspace %s: %d snapshot(s)\n", cfg.Server.Workspace, len(entries))
		for _, e := range entries {
			fmt.Fprintf(out, "  %s  %d elements\n", e.At.Format(time.RFC3339), e.Elements)
		}
		return 0
	case "prune":
		if n == 0 {
			n = cfg.Cache.Keep
		}
		removed, err := c.PruneWorkspaces(ctx, n)
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
			return 1
		}
		fmt.Fprintf(out, "Removed %d snapshot(s), kept up to %d per workspace\n", removed, n)
		return 0
	}
	fmt.Fprintf(out, "unknown cache command %q\n", sub)
	return 2
}
