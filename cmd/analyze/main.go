// Command analyze runs one video analysis in the foreground and prints the
// aggregated result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/app"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/config"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/logging"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/progress"
	"github.com/AAKevin8450/aquaticartists-video-sub000/internal/service"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed command line.
type options struct {
	configPath string
	outPath    string
	request    service.SubmitRequest
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: analyze [flags] <object-key>")
		fs.PrintDefaults()
	}

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.outPath, "out", "", "Write the result to this file instead of stdout")
	tier := fs.String("tier", "", "Capability tier (lite, pro, premier)")
	types := fs.String("types", "", "Comma-separated analysis types (default all)")
	combined := fs.Bool("combined", false, "Request all analysis types in one call per chunk")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, fmt.Errorf("expected exactly one object key")
	}

	opts.request = service.SubmitRequest{
		SourceRef: fs.Arg(0),
		Tier:      *tier,
	}
	if *types != "" {
		opts.request.Types = strings.Split(*types, ",")
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "combined" {
			opts.request.Combined = combined
		}
	})
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewLoggerTo(stderr, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	req, err := a.Service.NewRequest(opts.request)
	if err != nil {
		return err
	}

	sink, finish := progressSink(stderr, logger)
	result, err := a.Service.Analyze(ctx, req, sink)
	finish()
	if err != nil {
		return err
	}

	out := stdout
	if opts.outPath != "" {
		f, err := os.Create(opts.outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// progressSink draws a progress bar on interactive terminals and logs
// progress otherwise.
func progressSink(stderr io.Writer, logger *slog.Logger) (progress.Sink, func()) {
	if f, ok := stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bar := progress.NewBarSink(f)
		return bar, func() {
			bar.Finish()
			fmt.Fprintln(f)
		}
	}
	return progress.NewLogSink(logger), func() {}
}
