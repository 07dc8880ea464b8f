package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/fatih/color"
	"github.com/podhmo/lispcore"
	"github.com/podhmo/lispcore/object"
	"github.com/podhmo/lispcore/sandbox"
)

const usage = "usage: lispcore [-a capabilities] [-d depth] [-m mode] [-v] file [args...]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	red := color.New(color.FgRed, color.Bold)
	faint := color.New(color.Faint)

	config, err := lispcore.LoadConfig()
	if err != nil {
		red.Fprintln(stderr, err)
		return 2
	}

	opts, optind, err := getopt.Getopts(argv, "a:d:m:v")
	if err != nil {
		red.Fprintln(stderr, err)
		fmt.Fprintln(stderr, usage)
		return 2
	}
	// Scripts get no capability that -a does not grant, whatever the
	// configured default policy is.
	interceptor := sandbox.DenyAll
	for _, opt := range opts {
		switch opt.Option {
		case 'a':
			caps, err := sandbox.ParseCapabilities(opt.Value)
			if err != nil {
				red.Fprintln(stderr, err)
				return 2
			}
			interceptor = sandbox.Allow(caps...)
		case 'd':
			depth, err := lispcore.ParseMaxCallDepth(opt.Value)
			if err != nil {
				red.Fprintf(stderr, "invalid -d parameter %q: %v\n", opt.Value, err)
				return 2
			}
			config.MaxCallDepth = depth
		case 'm':
			config.RunMode = opt.Value
		case 'v':
			config.LogLevel = slog.LevelDebug
		}
	}
	args := argv[optind:]
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: config.LogLevel}))
	interp, err := lispcore.New(
		lispcore.WithConfig(config),
		lispcore.WithStdout(stdout),
		lispcore.WithStderr(stderr),
		lispcore.WithLogger(logger),
		lispcore.WithInterceptor(interceptor),
		lispcore.WithArgs(args[1:]...),
	)
	if err != nil {
		red.Fprintln(stderr, err)
		return 1
	}

	result, err := interp.EvalFile(ctx, args[0])
	if err != nil {
		e := object.AsError(err)
		red.Fprintf(stderr, "%s: %s\n", e.Kind, e.Message)
		if e.Location != "" {
			fmt.Fprintf(stderr, "\t%s\n", e.Location)
		}
		for i := len(e.CallStack) - 1; i >= 0; i-- {
			faint.Fprintln(stderr, e.CallStack[i].Format())
		}
		return 1
	}
	if config.LogLevel <= slog.LevelDebug {
		logger.DebugContext(ctx, "script finished", "file", args[0], "result", result.Value.Inspect())
	}
	return 0
}
