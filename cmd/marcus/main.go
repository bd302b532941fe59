// Marcus is a conversational home-decor advisor that delegates live
// market research to a secondary capability.
//
// It exposes an HTTP and websocket API for chat sessions and trend
// reports, plus a CLI for interactive chat and one-shot queries.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	marcus serve              Start the API server
//	marcus chat               Chat interactively on stdin
//	marcus ask <question>     Ask a single question
//	marcus report             Generate and save a trend report
//	marcus init [dir]         Initialize a working directory with defaults
//	marcus version            Print version and build information
//	marcus -o json version    Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nugget/marcus/internal/api"
	"github.com/nugget/marcus/internal/buildinfo"
	"github.com/nugget/marcus/internal/config"
)

func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the marcus command. All OS-level
// dependencies are injected so the full lifecycle can be driven from
// tests. Logs go to stderr; command output goes to stdout.
//
// Arguments are parsed by hand: the flag package's globals get in the
// way of calling run concurrently from tests.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stderr, configPath)
	case "chat":
		return runChat(ctx, stdin, stdout, stderr, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: marcus ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs)
	case "report":
		return runReport(ctx, stdout, stderr, configPath, outputFmt)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Marcus - Home Decor Advisor")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: marcus [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  chat         Chat interactively (/report, /latest, /quit)")
	fmt.Fprintln(w, "  ask          Ask a single question")
	fmt.Fprintln(w, "  report       Generate and save a trend report")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	for _, p := range config.DefaultSearchPaths() {
		fmt.Fprintf(w, "  %s\n", p)
	}
	return nil
}

// setup loads configuration, builds the process logger, and wires the
// application. The caller must Close the returned app.
func setup(ctx context.Context, logw io.Writer, configPath string) (*app, error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(logw, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded", "path", cfgPath)

	return newApp(ctx, cfg, logger)
}

// runServe starts the API server and blocks until ctx is cancelled or
// the process receives SIGINT or SIGTERM.
func runServe(ctx context.Context, stderr io.Writer, configPath string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	logger := a.logger
	logger.Info("starting marcus", "version", buildinfo.Version)

	if a.mqtt != nil {
		// Announcements are optional; the server runs without them.
		if err := a.mqtt.Start(ctx); err != nil {
			logger.Warn("mqtt unavailable, report announcements disabled", "error", err)
		}
	}

	server := api.NewServer(a.cfg.Listen.Address, a.cfg.Listen.Port, a.sessions, a.reports, logger)
	if a.client != nil {
		server.SetHealthCheck(a.client)
	}
	if a.log != nil {
		server.SetResearchLog(a.log)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("api server: %w", err)
		}
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	_ = server.Shutdown(shutdownCtx)
	if err := a.Close(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	return serveErr
}

// runAsk sends a single question through a fresh session and prints
// the reply.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath string, args []string) error {
	a, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	h, err := a.sessions.Create()
	if err != nil {
		return err
	}
	reply, err := h.Send(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	fmt.Fprintln(stdout, reply)
	return nil
}

// runReport generates and persists one trend report and prints it.
func runReport(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string) error {
	a, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	h, err := a.sessions.Create()
	if err != nil {
		return err
	}
	rep, err := h.GenerateReport(ctx)
	if err != nil {
		return err
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Fprintln(stdout, rep.Markdown())
	fmt.Fprintf(stdout, "\nSaved to %s\n", rep.Path)
	return nil
}

// runChat runs an interactive session on stdin until EOF or /quit.
func runChat(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, configPath string) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	h, err := a.sessions.Create()
	if err != nil {
		return err
	}
	return chatLoop(ctx, stdin, stdout, h)
}

// loadConfig locates and loads the configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
