// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Command il-verify parses an IL textual module and runs the verifier
// over it, printing OK on success or one diagnostic per line to stderr on
// failure.
//
// Usage:
//
//	il-verify <file.il>
//	il-verify --version
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	isatty "github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/viper-lang/viper/internal/diag"
	"github.com/viper-lang/viper/internal/il/ilio"
	"github.com/viper-lang/viper/internal/il/verify"
	"github.com/viper-lang/viper/internal/source"
)

const ilVersion = "il 1"

func main() {
	app := cli.NewApp()
	app.Name = "il-verify"
	app.Usage = "parse and verify one IL module"
	app.Version = ilVersion
	app.Flags = []cli.Flag{
		cli.BoolFlag{Name: "summary", Usage: "print a table of diagnostics by severity"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.NewExitError("usage: il-verify <file.il>", 1)
	}
	path := c.Args().Get(0)

	body, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return cli.NewExitError("", 1)
	}

	mgr := source.NewManager()
	fileID, err := mgr.AddFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return cli.NewExitError("", 1)
	}

	mod, diags := ilio.Parse(string(body), fileID)
	if hasErrors(diags) {
		printDiagnostics(diags, string(body))
		if c.Bool("summary") {
			printSummary(diags)
		}
		return cli.NewExitError("", 1)
	}

	vdiags := verify.VerifyModule(mod)
	if len(vdiags) > 0 {
		printDiagnostics(vdiags, string(body))
		if c.Bool("summary") {
			printSummary(vdiags)
		}
		return cli.NewExitError("", 1)
	}

	fmt.Println("OK")
	return nil
}

func hasErrors(diags []diag.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == diag.Error {
			return true
		}
	}
	return false
}

func printDiagnostics(diags []diag.Diagnostic, body string) {
	lines := splitLines(body)
	useColor := isatty.IsTerminal(os.Stderr.Fd()) && !color.NoColor
	for _, d := range diags {
		if int(d.Location.Line) >= 1 && int(d.Location.Line) <= len(lines) {
			d.SourceLine = lines[d.Location.Line-1]
		}
		if useColor {
			fmt.Fprintln(os.Stderr, d.Colored())
		} else {
			fmt.Fprintln(os.Stderr, d.String())
		}
	}
}

func printSummary(diags []diag.Diagnostic) {
	counts := map[diag.Severity]int{}
	for _, d := range diags {
		counts[d.Severity]++
	}
	table := tablewriter.NewWriter(os.Stderr)
	table.SetHeader([]string{"severity", "count"})
	table.Append([]string{diag.Error.String(), fmt.Sprint(counts[diag.Error])})
	table.Append([]string{diag.Warning.String(), fmt.Sprint(counts[diag.Warning])})
	table.Append([]string{diag.Note.String(), fmt.Sprint(counts[diag.Note])})
	table.Render()
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
