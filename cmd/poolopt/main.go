package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/itchyny/go-yaml"
	"github.com/mattn/go-isatty"

	"github.com/speakeasy-api/poolopt"
	"github.com/speakeasy-api/poolopt/pkg/irload"
	"github.com/speakeasy-api/poolopt/pkg/report"
	"github.com/speakeasy-api/poolopt/slotreuse"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// document is the YAML output: the optimized program and what changed.
type document struct {
	Program *irload.Program `yaml:"program"`
	Result  summary         `yaml:"result"`
}

type summary struct {
	Merges      int          `yaml:"merges"`
	Compactions int          `yaml:"compactions"`
	BytesBefore int64        `yaml:"bytes_before"`
	BytesAfter  int64        `yaml:"bytes_after"`
	Pools       []poolReport `yaml:"pools,omitempty"`
	Warnings    []string     `yaml:"warnings,omitempty"`
}

type poolReport struct {
	Name   string        `yaml:"name"`
	Size   int64         `yaml:"size"`
	Groups []groupReport `yaml:"groups"`
}

type groupReport struct {
	Offset    int64    `yaml:"offset"`
	Footprint int64    `yaml:"footprint"`
	Slots     []string `yaml:"slots,flow"`
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("poolopt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: poolopt [flags] FILE|-")
		fs.PrintDefaults()
	}
	defaults := slotreuse.DefaultOptions()
	output := fs.String("o", "text", "output format: text or yaml")
	showReport := fs.Bool("report", false, "print the pool layout report")
	noMerge := fs.Bool("no-merge", false, "do not merge slots")
	noCompact := fs.Bool("no-compact", false, "do not compact pools")
	logLevel := fs.String("log-level", "", "log level: error, warn, info or debug")
	maxIter := fs.Int("max-iterations", defaults.MaxIterations, "maximum number of rewrites")
	colorMode := fs.String("color", "auto", "color the report: auto, always or never")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	if *output != "text" && *output != "yaml" {
		fmt.Fprintf(stderr, "poolopt: unknown output format %q\n", *output)
		return 2
	}
	color, err := useColor(*colorMode, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "poolopt: %v\n", err)
		return 2
	}

	f, err := load(fs.Arg(0), stdin)
	if err != nil {
		fmt.Fprint(stderr, irload.FormatError(err))
		return 1
	}

	opts := defaults
	opts.EnableMerge = !*noMerge
	opts.EnableCompaction = !*noCompact
	opts.MaxIterations = *maxIter
	opts.LogLevel = *logLevel
	opts.LogOutput = stderr
	res, err := slotreuse.Run(context.Background(), f, opts)
	if err != nil {
		fmt.Fprintf(stderr, "poolopt: %v\n", err)
		return 1
	}

	switch *output {
	case "text":
		fmt.Fprint(stdout, f.String())
	case "yaml":
		out, err := yaml.Marshal(document{Program: irload.Export(f), Result: summarize(res)})
		if err != nil {
			fmt.Fprintf(stderr, "poolopt: %v\n", err)
			return 1
		}
		stdout.Write(out)
	}
	if *showReport {
		if *output == "text" {
			fmt.Fprintln(stdout)
		}
		fmt.Fprint(stdout, report.Render(res, report.Config{Color: color}))
	}
	return 0
}

func load(path string, stdin io.Reader) (*poolopt.Func, error) {
	if path == "-" {
		return irload.Load(stdin)
	}
	return irload.LoadFile(path)
}

func useColor(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		if os.Getenv("NO_COLOR") != "" {
			return false, nil
		}
		file, ok := w.(*os.File)
		if !ok {
			return false, nil
		}
		fd := file.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd), nil
	}
	return false, fmt.Errorf("unknown color mode %q", mode)
}

func summarize(res *slotreuse.Result) summary {
	s := summary{
		Merges:      res.Merges,
		Compactions: res.Compactions,
		BytesBefore: res.BytesBefore,
		BytesAfter:  res.BytesAfter,
		Warnings:    res.Warnings,
	}
	for _, p := range res.Pools {
		pr := poolReport{Name: p.Name, Size: p.Size}
		for _, g := range p.Groups {
			pr.Groups = append(pr.Groups, groupReport{Offset: g.Offset, Footprint: g.Footprint, Slots: g.Slots})
		}
		s.Pools = append(s.Pools, pr)
	}
	return s
}
