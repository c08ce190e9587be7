// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command spnl parses, optimizes, and executes a serialized query
// tree.
//
// Usage:
//
//	spnl run query.json --config spnl.yaml
//	spnl run query.json --config spnl.yaml --prepare --time=all
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"github.com/spnl-dev/spnl/pkg/config"
	"github.com/spnl-dev/spnl/pkg/executor"
	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/logger"
	"github.com/spnl-dev/spnl/pkg/pull"
	"github.com/spnl-dev/spnl/pkg/timing"
)

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Parse, optimize, and execute a query file."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFormat string `help:"Log format (simple, verbose, or text)." default:"text"`
}

// VersionCmd prints build version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println("spnl dev")
	return nil
}

// RunCmd parses, optimizes, and executes one query file.
type RunCmd struct {
	Query string `arg:"" help:"Path to a serialized query file (JSON)." type:"path"`

	Prepare bool   `help:"Plan only: validate and resolve backends without decoding tokens."`
	Time    string `help:"Timing mode: none, gen1, gen, all." default:"none" enum:"none,gen1,gen,all"`
	Silent  bool   `help:"Suppress streamed output."`
	NoPull  bool   `help:"Skip the pre-execution model pull scan."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Warn("interrupted, shutting down")
		cancel()
	}()

	data, err := os.ReadFile(c.Query)
	if err != nil {
		return fmt.Errorf("failed to read query file: %w", err)
	}
	query, err := ir.Unmarshal(data)
	if err != nil {
		return err
	}

	cfg := &config.Config{}
	if cli.Config != "" {
		cfg, err = config.Load(cli.Config)
		if err != nil {
			return err
		}
	} else {
		cfg.SetDefaults()
	}

	backends, err := config.BuildRegistry(cfg)
	if err != nil {
		return err
	}

	opt, err := config.BuildOptimizer(cfg, backends)
	if err != nil {
		return err
	}
	optimized, err := opt.Optimize(ctx, query)
	if err != nil {
		return err
	}

	if !c.NoPull {
		if err := pull.IfNeeded(ctx, backends, optimized, pull.Options{}); err != nil {
			return err
		}
	}

	exec := executor.New(backends, cfg.Execute.Concurrency)

	recorder := timing.NewRecorder()
	timeMode := executor.TimeMode(c.Time)
	if c.Time == "none" && cfg.Execute.Time != "" {
		timeMode = executor.TimeMode(cfg.Execute.Time)
	}

	result, err := exec.Execute(ctx, optimized, executor.ExecuteOptions{
		Prepare: c.Prepare,
		Time:    timeMode,
		Silent:  c.Silent,
		Timing:  recorder,
	})

	if timeMode != executor.TimeNone {
		recorder.Report(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()) && !c.Silent)
	}

	if err != nil {
		return err
	}

	if !c.Silent {
		fmt.Println(ir.Pretty(result))
	}
	return nil
}

func main() {
	var cli CLI
	parser := kong.Parse(&cli,
		kong.Name("spnl"),
		kong.Description("Parse, optimize, and execute structured prompt-orchestration query trees."),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logger.Init(level, os.Stderr, cli.LogFormat)

	start := time.Now()
	err = parser.Run(&cli)
	slog.Debug("command finished", "elapsed", time.Since(start))
	parser.FatalIfErrorf(err)
}
