// Command sia samples hardware telemetry (utilization, temperatures, clock
// frequencies) and shows it as live rolling charts.
//
//	sia [flags]            live monitor
//	sia list [flags]       print discovered sensor groups
//	sia sample [flags]     take --ticks samples headless and print the latest values
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/luki/sia/internal/accel"
	"github.com/luki/sia/internal/config"
	"github.com/luki/sia/internal/engine"
	"github.com/luki/sia/internal/monitor"
	"github.com/luki/sia/internal/view"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "sia:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("sia", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	ticks := fs.Int("ticks", 5, "samples to take (sample command)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: sia [monitor|list|sample] [flags]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := config.FromFlags(fs)
	if err != nil {
		return err
	}

	cmd := "monitor"
	if fs.NArg() > 0 {
		cmd = fs.Arg(0)
	}

	headless := cmd != "monitor"
	logger, closeLog, err := newLogger(cfg, headless, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	switch cmd {
	case "monitor":
		return runMonitor(ctx, cfg, eng, logger)
	case "list":
		return printGroups(stdout, eng)
	case "sample":
		if *ticks <= 0 {
			return fmt.Errorf("--ticks must be positive, got %d", *ticks)
		}
		if err := sample(ctx, eng, *ticks); err != nil {
			return err
		}
		return printSample(stdout, eng)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// newLogger builds the process logger. The monitor owns the terminal, so it
// logs JSON to --log-file or nowhere; headless commands log text to stderr.
func newLogger(cfg *config.Config, headless bool, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return slog.New(slog.NewJSONHandler(f, opts)), func() { f.Close() }, nil
	}
	if headless {
		return slog.New(slog.NewTextHandler(stderr, opts)), func() {}, nil
	}
	return slog.New(slog.DiscardHandler), func() {}, nil
}

func newEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	eng := engine.New(engine.Options{
		Period:      cfg.SamplePeriod,
		HistorySize: cfg.HistorySize,
		HwmonRoot:   cfg.HwmonRoot,
		CPURoot:     cfg.CPURoot,
		Accel:       accel.Probe(cfg.AcceleratorMode(), logger),
		Logger:      logger,
	})
	if err := eng.Init(); err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	return eng, nil
}

// runMonitor runs the scheduler and the TUI side by side until the user
// quits or a signal arrives.
func runMonitor(ctx context.Context, cfg *config.Config, eng *engine.Engine, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := view.New(eng.Groups(), len(eng.Catalog().Freqs()), cfg.WindowSeconds, view.Legend(cfg.Legend))
	p := tea.NewProgram(
		monitor.New(eng, state, cfg.RefreshInterval),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("monitor: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("monitor stopped")
	return nil
}

// sample takes n ticks one period apart.
func sample(ctx context.Context, eng *engine.Engine, n int) error {
	ticker := time.NewTicker(eng.Period())
	defer ticker.Stop()

	for i := range n {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		if err := eng.Tick(); err != nil {
			return err
		}
	}
	return nil
}
