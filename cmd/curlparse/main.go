package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/muesli/termenv"

	"github.com/unkn0wn-root/curlparse/internal/config"
	"github.com/unkn0wn-root/curlparse/internal/curl"
	"github.com/unkn0wn-root/curlparse/internal/curl/importer"
	"github.com/unkn0wn-root/curlparse/internal/history"
	"github.com/unkn0wn-root/curlparse/internal/server"
	"github.com/unkn0wn-root/curlparse/internal/telemetry"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var errNoInput = errors.New("no curl command given")

func main() {
	var (
		filePath        string
		fromClipboard   bool
		all             bool
		pretty          bool
		colorMode       string
		httpOut         string
		overwrite       bool
		serve           bool
		addr            string
		historyN        int
		noHistory       bool
		envFile         string
		send            bool
		writeSettings   bool
		timeout         time.Duration
		showVersion     bool
		traceOTEndpoint string
		traceOTInsecure bool
		traceOTService  string
	)

	flag.StringVar(&filePath, "file", "", "Read the curl command from a file")
	flag.BoolVar(&fromClipboard, "clipboard", false, "Read the curl command from the clipboard")
	flag.BoolVar(&all, "all", false, "Parse every curl command in the input")
	flag.BoolVar(&pretty, "pretty", true, "Indent JSON output")
	flag.StringVar(&colorMode, "color", "auto", "Colour JSON output: auto, always or never")
	flag.StringVar(&httpOut, "http-out", "", "Write the parsed request(s) to a .http file")
	flag.BoolVar(&overwrite, "overwrite", false, "Allow -http-out to replace an existing file")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP API")
	flag.StringVar(&addr, "addr", "", "Listen address for -serve (overrides settings)")
	flag.IntVar(&historyN, "history", 0, "Print the N most recent parse history entries")
	flag.BoolVar(&noHistory, "no-history", false, "Do not record parses in history")
	flag.StringVar(&envFile, "env-file", "", "Load environment variables from a dotenv file")
	flag.BoolVar(&send, "send", false, "Send the parsed request and print the response status")
	flag.BoolVar(&writeSettings, "save-settings", false, "Write the effective settings (with -addr applied) and exit")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for -send")
	flag.BoolVar(&showVersion, "version", false, "Show curlparse version")
	flag.StringVar(
		&traceOTEndpoint,
		"trace-otel-endpoint",
		"",
		"OTLP collector endpoint for parse spans",
	)
	flag.BoolVar(
		&traceOTInsecure,
		"trace-otel-insecure",
		false,
		"Disable TLS for OTLP trace export",
	)
	flag.StringVar(
		&traceOTService,
		"trace-otel-service",
		"",
		"Override service.name resource attribute for exported spans",
	)
	flag.Parse()

	if showVersion {
		fmt.Printf("curlparse %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		if sum, err := executableChecksum(); err == nil {
			fmt.Printf("  sha256: %s\n", sum)
		} else {
			fmt.Printf("  sha256: unavailable (%v)\n", err)
		}
		os.Exit(0)
	}

	formatter, err := colorFormatter(colorMode, termenv.NewOutput(os.Stdout).EnvColorProfile())
	if err != nil {
		log.Fatalf("color: %v", err)
	}

	if envFile != "" {
		if err := loadEnvFile(envFile); err != nil {
			log.Fatalf("env file: %v", err)
		}
	}

	telemetryCfg := telemetry.ConfigFromEnv(os.Getenv)
	if v := strings.TrimSpace(traceOTEndpoint); v != "" {
		telemetryCfg.Endpoint = v
	}
	if traceOTInsecure {
		telemetryCfg.Insecure = true
	}
	if v := strings.TrimSpace(traceOTService); v != "" {
		telemetryCfg.ServiceName = v
	}
	telemetryCfg.Version = version

	settings, handle, err := config.LoadSettings()
	if err != nil {
		if writeSettings {
			log.Fatalf("settings load error: %v", err)
		}
		log.Printf("settings load error: %v", err)
		settings = config.DefaultSettings(config.Dir())
	}
	if addr != "" {
		settings.Server.Addr = addr
	}
	if writeSettings {
		if err := saveSettings(os.Stdout, settings, handle); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	provider, err := telemetry.New(telemetryCfg)
	if err != nil {
		if telemetryCfg.Enabled() {
			log.Printf("telemetry init error: %v", err)
		}
		provider = telemetry.Noop()
	}
	shutdownTelemetry := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := provider.Shutdown(ctx); shutdownErr != nil {
			log.Printf("telemetry shutdown: %v", shutdownErr)
		}
	}
	defer shutdownTelemetry()

	var store *history.Store
	if settings.History.Enabled && !noHistory {
		store, err = history.Open(settings.History.Path, settings.History.MaxEntries)
		if err != nil {
			log.Printf("history open error: %v", err)
			store = nil
		} else {
			defer func() {
				_ = store.Close()
			}()
		}
	}

	parser := curl.NewParser(curl.Options{MatchTimeout: settings.Parser.MatchTimeout.Std()})

	if historyN > 0 {
		if store == nil {
			log.Fatalf("history is disabled")
		}
		if err := printHistory(context.Background(), os.Stdout, store, historyN); err != nil {
			log.Fatalf("history: %v", err)
		}
		return
	}

	if serve {
		listen := settings.Server.Addr
		opts := server.Options{
			Parser:         parser,
			Telemetry:      provider,
			AllowedOrigins: settings.Server.AllowedOrigins,
		}
		if store != nil {
			opts.History = store
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := server.New(opts).Run(ctx, listen); err != nil {
			log.Printf("server: %v", err)
		}
		return
	}

	src, err := readInput(inputSource{
		args:      flag.Args(),
		file:      filePath,
		clipboard: fromClipboard,
		stdin:     os.Stdin,
	})
	if err != nil {
		log.Fatalf("input: %v", err)
	}

	ctx := context.Background()
	cli := &runner{
		parser: parser,
		tel:    provider,
		now:    time.Now,
	}
	if store != nil {
		cli.history = store
	}

	results := cli.parse(ctx, src, all)
	if err := writeResults(os.Stdout, results, all, pretty, formatter); err != nil {
		log.Fatalf("write output: %v", err)
	}

	exitCode := 0
	if httpOut != "" {
		svc := importer.NewService(parser)
		opts := importer.WriterOptions{
			OverwriteExisting: overwrite,
			HeaderComment:     fmt.Sprintf("Generated by curlparse %s", version),
		}
		target := src
		if !all {
			target = firstCommand(src)
		}
		if err := svc.GenerateHTTPFile(ctx, target, httpOut, opts); err != nil {
			fmt.Fprintf(os.Stderr, "http export error: %v\n", err)
			exitCode = 1
		} else {
			fmt.Fprintf(os.Stderr, "Generated %s\n", filepath.Clean(httpOut))
		}
	}

	if send && exitCode == 0 {
		if err := sendFirst(ctx, os.Stdout, results, timeout); err != nil {
			fmt.Fprintf(os.Stderr, "send error: %v\n", err)
			exitCode = 1
		}
	}

	if !allSucceeded(results) {
		exitCode = 1
	}
	if exitCode != 0 {
		if store != nil {
			_ = store.Close()
		}
		shutdownTelemetry()
		os.Exit(exitCode)
	}
}

func executableChecksum() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	f, err := os.Open(exe)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
