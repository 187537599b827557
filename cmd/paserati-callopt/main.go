package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"paserati-ic/pkg/ic"
	"paserati-ic/pkg/scenario"
)

var log = commonlog.GetLogger("paserati.callopt")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("paserati-callopt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFlag := fs.String("config", "", "TOML file with an [ic] table")
	formatFlag := fs.String("format", "text", "Report format: text or cbor")
	outFlag := fs.String("o", "", "Write reports to this file instead of stdout")
	verboseFlag := fs.Bool("v", false, "Trace classification and handler decisions")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: paserati-callopt [options] scenario.yaml...\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 64 // Exit code 64: command line usage error
	}
	if fs.NArg() == 0 || (*formatFlag != "text" && *formatFlag != "cbor") {
		fs.Usage()
		return 64
	}

	verbosity := 0
	if *verboseFlag {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	cfg := ic.DefaultConfig()
	if *configFlag != "" {
		var err error
		if cfg, err = ic.LoadConfig(*configFlag); err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
			return 64
		}
	}
	if err := cfg.Apply(); err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %s\n", err)
		return 64
	}

	out := stdout
	if *outFlag != "" {
		f, err := os.Create(*outFlag)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to create '%s': %s\n", *outFlag, err)
			return 70
		}
		defer f.Close()
		out = f
	}
	color := *formatFlag == "text" && isTerminal(out)

	var scenarios, checks, loads, failures, broken int
	for _, path := range fs.Args() {
		rep, err := runScenario(path, cfg)
		if err != nil {
			log.Errorf("%s", err)
			broken++
			continue
		}
		scenarios++
		checks += len(rep.Checks)
		loads += len(rep.Loads)
		failures += len(rep.Failures)

		if err := writeReport(out, rep, *formatFlag, color); err != nil {
			fmt.Fprintf(stderr, "Failed to write report: %s\n", err)
			return 70
		}
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(stderr, "%d scenarios, %d checks, %d loads, %d failures, %d errors\n",
		scenarios, checks, loads, failures, broken)
	if failures > 0 || broken > 0 {
		return 70 // Exit code 70: internal software error
	}
	return 0
}

func runScenario(path string, cfg ic.Config) (*scenario.Report, error) {
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	g, err := sc.Build()
	if err != nil {
		return nil, err
	}
	g.Config = cfg
	log.Infof("running %s", sc.Name)
	return g.Run()
}

func writeReport(w io.Writer, rep *scenario.Report, format string, color bool) error {
	if format == "cbor" {
		data, err := rep.EncodeCBOR()
		if err != nil {
			return err
		}
		// Reports are written back to back as a CBOR sequence.
		_, err = w.Write(data)
		return err
	}
	return rep.WriteText(w, color)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
