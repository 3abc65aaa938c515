// Command probikes runs the workshop API and maintains its data document.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"probikes/internal/adapters/httpapi"
	"probikes/internal/config"
	"probikes/pkg/domain"
)

const shutdownTimeout = 15 * time.Second

var exitFunc = os.Exit

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		exitFunc(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: probikes [-config file] [-env file] <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve            Start the HTTP API and notifier (default)")
	fmt.Fprintln(w, "  export <file>    Write a backup of the document (- for stdout)")
	fmt.Fprintln(w, "  import <file>    Replace the document with a backup")
	fmt.Fprintln(w, "  migrate          Open the document, migrate it and print the report")
	fmt.Fprintln(w, "  token <subject>  Issue an API bearer token valid for 30 days")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("probikes", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr) }
	configPath := fs.String("config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	envFile := fs.String("env", ".env", "dotenv file loaded before the environment")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(config.Options{Path: *configPath, EnvFile: *envFile})
	if err != nil {
		return err
	}

	cmd, rest := "serve", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}
	switch cmd {
	case "serve":
		return runServe(ctx, cfg, stdout, stderr)
	case "export":
		if len(rest) != 1 {
			return errors.New("export needs a target file")
		}
		return runExport(ctx, cfg, rest[0], stdout, stderr)
	case "import":
		if len(rest) != 1 {
			return errors.New("import needs a backup file")
		}
		return runImport(ctx, cfg, rest[0], stdout, stderr)
	case "migrate":
		return runMigrate(ctx, cfg, stdout, stderr)
	case "token":
		if len(rest) != 1 {
			return errors.New("token needs a subject")
		}
		return runToken(cfg, rest[0], stdout)
	case "help", "-h":
		usage(stdout)
		return nil
	default:
		usage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runServe(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	a, err := newApp(ctx, cfg, stderr, appOptions{notify: true})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			a.log.Error("shutdown incomplete", "error", err)
		}
	}()

	api := httpapi.New(a.svc, httpapi.Config{
		Env:            cfg.HTTP.Env,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		Gatherer:       a.registry,
	}, a.log)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	green.Fprint(stdout, "  ▶ ")
	fmt.Fprintf(stdout, "HTTP:     %s\n", cfg.HTTP.Addr)
	green.Fprint(stdout, "  ▶ ")
	fmt.Fprintf(stdout, "Storage:  %s", cfg.Storage.Driver)
	if a.store.Seeded() {
		color.New(color.FgYellow).Fprint(stdout, " [seeded]")
	}
	fmt.Fprintln(stdout)
	green.Fprint(stdout, "  ▶ ")
	fmt.Fprintf(stdout, "Webhook:  %t\n", a.notifier != nil)
	if cfg.Auth.JWTSecret == "" {
		gray.Fprintln(stdout, "    auth disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func runExport(ctx context.Context, cfg *config.Config, target string, stdout, stderr io.Writer) error {
	a, err := newApp(ctx, cfg, stderr, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	info, payload, err := a.svc.ExportBackup(ctx)
	if err != nil {
		return err
	}
	if target == "-" {
		_, err = stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(target, payload, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	color.New(color.FgGreen).Fprint(stdout, "exported ")
	fmt.Fprintf(stdout, "%s (%d bytes)", target, len(payload))
	if info.Key != "" {
		fmt.Fprintf(stdout, ", stored as %s", info.Key)
	}
	fmt.Fprintln(stdout)
	return nil
}

func runImport(ctx context.Context, cfg *config.Config, source string, stdout, stderr io.Writer) error {
	raw, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	a, err := newApp(ctx, cfg, stderr, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	report, _, err := a.svc.ImportBackup(ctx, raw)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprint(stdout, "imported ")
	fmt.Fprintln(stdout, source)
	printReport(stdout, report)
	return nil
}

func runMigrate(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	a, err := newApp(ctx, cfg, stderr, appOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	info, err := a.svc.SystemInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "revision %d, %d clients, %d bikes, %d services, %d reminders\n",
		info.Revision, info.Clients, info.Bikes, info.Services, info.Reminders)
	printReport(stdout, a.store.MigrationReport())
	return nil
}

func runToken(cfg *config.Config, subject string, stdout io.Writer) error {
	token, err := httpapi.IssueToken(cfg.Auth.JWTSecret, subject, 30*24*time.Hour, time.Now())
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func printReport(w io.Writer, r domain.MigrationReport) {
	if !r.Changed() {
		color.New(color.FgHiBlack).Fprintf(w, "schema v%d, no migration needed\n", r.ToVersion)
		return
	}
	fmt.Fprintf(w, "migrated schema v%d -> v%d", r.FromVersion, r.ToVersion)
	if len(r.Applied) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(r.Applied, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  reminders removed:   %d\n", r.RemindersRemoved)
	fmt.Fprintf(w, "  display ids changed: %d\n", r.DisplayIDsChanged)
	if r.ReloadRequired {
		color.New(color.FgYellow).Fprintln(w, "  service ids were renumbered; clients must reload")
	}
}
