// Package run runs the top-level task of a quartz binary: it sets up logging
// from the command line and turns signals into context cancellation or
// reload requests.
package run

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/quartz/tlog"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var fs = pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)

func init() {
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.String("log-format", "", "Log format (json|text)")
	fs.String("log-color", "", "Colored logs (yes|no|auto)")
	fs.BoolP("verbose", "v", false, "Enable verbose (debug level) messages")
	// Hide usage while parsing the command line here, will be covered by a regular command line parsing.
	fs.Usage = func() {}

	// Add options help to the main command-line parser.
	pflag.CommandLine.AddFlagSet(fs)
}

// Server runs a long-lived task, watching for signals.
//
// The context passed to the task carries a logger configured from the
// --log-format, --log-color and --verbose flags. SIGTERM and SIGINT close
// the context; SIGHUP is delivered through Hangups.
//
// Server does not return. It exits with code 0 if the task returns nil or
// stops because of a termination signal, and with code 1 otherwise.
//
//	func main() {
//	    pflag.Parse()
//	    run.Server(func(ctx context.Context) error {
//	        return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
//	            spawn("feed", parallel.Fail, consumer.Run)
//	            spawn("admin", parallel.Fail, server.Run)
//	            return nil
//	        })
//	    })
//	}
func Server(task func(ctx context.Context) error) {
	// os.Exit doesn't run deferred functions, so we'll call it in the first
	// defer which runs last
	var err error
	defer func() {
		if err != nil {
			os.Exit(1)
		}
	}()

	hangups := make(chan struct{}, 1)
	ctx := context.WithValue(rootContext(), hangupsKey, (<-chan struct{})(hangups))

	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("main", parallel.Exit, func(ctx context.Context) error {
			err := task(ctx)
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		})
		spawn("signals", parallel.Exit, func(ctx context.Context) error {
			return handleSignals(ctx, hangups)
		})
		return nil
	})
	if err != nil {
		tlog.Get(ctx).Error("Error", zap.Error(err))
	}
}

type hangupsKeyType int

const hangupsKey hangupsKeyType = iota

// Hangups returns the channel receiving a value on every SIGHUP. Outside of
// Server it returns nil, which never delivers.
func Hangups(ctx context.Context) <-chan struct{} {
	ch, _ := ctx.Value(hangupsKey).(<-chan struct{})
	return ch
}

// cliConfig returns the Config derived from the command line
func cliConfig() tlog.Config {
	if err := fs.Parse(os.Args[1:]); err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Println(err)
		os.Exit(2)
	}

	format := tlog.FormatText
	if fs.Lookup("log-format").Changed {
		format = tlog.Format(must.OK1(fs.GetString("log-format")))
	}
	color := tlog.ColorAuto
	if fs.Lookup("log-color").Changed {
		colorArg := must.OK1(fs.GetString("log-color"))
		switch colorArg {
		case "", "auto":
			color = tlog.ColorAuto
		case "yes":
			color = tlog.ColorYes
		case "no":
			color = tlog.ColorNo
		default:
			panic(fmt.Sprintf("invalid --log-color value %q", colorArg))
		}
	}

	return tlog.Config{
		Name:    "quartz",
		Format:  format,
		Color:   color,
		Verbose: must.OK1(fs.GetBool("verbose")),
	}
}

func rootContext() context.Context {
	logger := tlog.New(cliConfig())
	return tlog.WithLogger(context.Background(), logger)
}
