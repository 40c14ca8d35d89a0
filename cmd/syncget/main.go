package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"syncnet/application/http/actor/client"
	"syncnet/application/http/engine/nethttp"
	"syncnet/application/http/semantic"
	"syncnet/config"
)

type flags struct {
	configPath  string
	method      string
	headers     []string
	data        string
	contentType string
	traceHeader string
	include     bool
	resolve     []string
}

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "syncget [flags] URL",
		Short:         "Perform one HTTP request through the blocking client",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return run(ctx, f, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.StringVarP(&f.method, "method", "X", "", "request method (GET, or POST with --data)")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, `request header "Name: value", repeatable`)
	fs.StringVarP(&f.data, "data", "d", "", "request body")
	fs.StringVar(&f.contentType, "content-type", "application/octet-stream", "content type of --data")
	fs.StringVar(&f.traceHeader, "trace-header", "", "header carrying a random request id")
	fs.BoolVarP(&f.include, "include", "i", false, "print the status line and headers")
	fs.StringArrayVar(&f.resolve, "resolve", nil, `pin "host=ip" ahead of DNS, repeatable`)

	return cmd
}

func run(ctx context.Context, f flags, rawURL string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	request, err := buildRequest(f, rawURL)
	if err != nil {
		return err
	}

	engineOpts := cfg.EngineOptions()
	lookuper, err := cfg.Lookuper(f.resolve...)
	if err != nil {
		return errors.Wrap(err, "parsing --resolve")
	}
	if lookuper != nil {
		engineOpts.Lookuper = lookuper
	}

	e, err := nethttp.New(logger.With(slog.String("component", "engine")), engineOpts)
	if err != nil {
		return errors.Wrap(err, "creating engine")
	}

	opts := cfg.ClientOptions()
	opts.Listeners = client.Listeners{func(ev client.Event) {
		attrs := []any{slog.String("stage", ev.Stage.String()), slog.Uint64("id", ev.Request.ID())}
		if ev.Elapsed > 0 {
			attrs = append(attrs, slog.Duration("elapsed", ev.Elapsed))
		}
		logger.Debug("stage", attrs...)
	}}

	c := client.New(e, logger.With(slog.String("component", "client")), clock.New(), opts)
	defer c.Shutdown()

	response, err := c.Execute(ctx, request)
	if err != nil {
		return err
	}
	defer response.Close()

	if f.include {
		printHead(stdout, response)
	}

	body, err := response.Body.AsStream()
	if err != nil {
		return err
	}
	if _, err := io.Copy(stdout, body); err != nil {
		return errors.Wrap(err, "reading body")
	}
	return nil
}

func buildRequest(f flags, rawURL string) (*semantic.Request, error) {
	var headers semantic.Headers
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.Errorf("malformed header %q", h)
		}
		headers.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	if f.traceHeader != "" {
		headers.Set(f.traceHeader, uuid.NewString())
	}

	method := semantic.Method(strings.ToUpper(f.method))
	if method == "" {
		method = semantic.MethodGet
		if f.data != "" {
			method = semantic.MethodPost
		}
	}

	var body *semantic.RequestBody
	if f.data != "" {
		body = semantic.NewBody(f.contentType, []byte(f.data))
	}

	return semantic.NewRequest(method, rawURL, headers.Fields(), body)
}

func printHead(w io.Writer, response *semantic.Response) {
	fmt.Fprintf(w, "%s %d %s\n", response.Protocol, response.Status.Code, response.Status.ReasonPhrase)

	fields := response.Headers.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range fields[name] {
			fmt.Fprintf(w, "%s: %s\n", name, v)
		}
	}
	fmt.Fprintln(w)
}
