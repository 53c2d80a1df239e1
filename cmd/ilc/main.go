// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command ilc runs IL textual modules, the toolchain's "ilc run" driver.
//
// Usage:
//
//	ilc run [--config file.toml] [--trace il|src] [--debug] <file.il>
//
// The entry function runs with no arguments; anything after <file.il> is
// ignored.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/viper-lang/viper/internal/il/ilio"
	"github.com/viper-lang/viper/internal/il/ir"
	"github.com/viper-lang/viper/internal/il/verify"
	"github.com/viper-lang/viper/internal/il/vm"
	"github.com/viper-lang/viper/internal/source"
)

const ilVersion = "il 1"

func main() {
	app := cli.NewApp()
	app.Name = "ilc"
	app.Usage = "run IL textual modules"
	app.Version = ilVersion
	app.Commands = []cli.Command{
		{
			Name:      "run",
			Usage:     "verify then execute a module's @main function",
			ArgsUsage: "<file.il>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "config", Usage: "path to a VmConfig toml file"},
				cli.StringFlag{Name: "trace", Usage: "instruction trace mode: il, src"},
				cli.BoolFlag{Name: "debug", Usage: "enable the breakpoint/REPL debugger"},
				cli.StringSliceFlag{Name: "break", Usage: "breakpoint, as path:line (repeatable)"},
				cli.StringFlag{Name: "entry", Value: "main", Usage: "entry function name"},
			},
			Action: runCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.NewExitError("usage: ilc run <file.il>", 1)
	}
	path := c.Args().Get(0)

	cfg := vm.DefaultConfig()
	if cfgPath := c.String("config"); cfgPath != "" {
		loaded, err := vm.LoadConfig(cfgPath)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("loading config: %v", err), 1)
		}
		cfg = loaded
	}
	if mode := c.String("trace"); mode != "" {
		cfg.Trace = vm.TraceMode(mode)
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if bps := c.StringSlice("break"); len(bps) > 0 {
		cfg.Breakpoints = append(cfg.Breakpoints, bps...)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("%s: %v", path, err), 1)
	}

	mgr := source.NewManager()
	fileID, err := mgr.AddFile(path)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("%s: %v", path, err), 1)
	}

	mod, diags := ilio.Parse(string(body), fileID)
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.String())
		}
		return cli.NewExitError("", 1)
	}

	if vdiags := verify.VerifyModule(mod); len(vdiags) > 0 {
		for _, d := range vdiags {
			fmt.Fprintln(os.Stderr, d.String())
		}
		return cli.NewExitError("", 1)
	}

	runID := uuid.New()
	fmt.Fprintf(os.Stderr, "run %s: loaded %s\n", runID, path)

	opts := []vm.Option{vm.WithSourceManager(mgr)}
	if cfg.Debug {
		debugCtrl := vm.NewDebugCtrl(mgr, cfg.Breakpoints)
		opts = append(opts, vm.WithDebugCtrl(debugCtrl), vm.WithBreakHook(func(fr *vm.Frame, blk *ir.BasicBlock, ip int) {
			fmt.Fprintf(os.Stderr, "-- breakpoint at %s#%d --\n", blk.Label, ip)
			vm.DumpFrame(os.Stderr, fr)
		}))
	}

	machine, err := vm.New(mod, cfg, opts...)
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("%s: %v", path, err), 1)
	}

	entry := c.String("entry")
	res, err := machine.Run(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run %s: trap: %v\n", runID, err)
		os.Exit(1)
	}

	os.Exit(int(res.I))
	return nil
}
