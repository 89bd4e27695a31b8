package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"contaae/internal/cli"
	"contaae/internal/config"
	"contaae/internal/core"
	"contaae/internal/log"
	"contaae/internal/ports"
	"contaae/internal/services"
	"contaae/internal/sheets"
)

// cliApp is the operator command line: legacy import, reports and exports
// against the same store the API uses.
type cliApp struct {
	root *cobra.Command
	out  io.Writer
	now  func() time.Time

	logger  *log.Logger
	cfg     *config.Config
	store   ports.Store
	reports *services.ReportService

	closers []func()

	// newSheetsExporter is swapped in tests
	newSheetsExporter func(ctx context.Context, cfg *config.Config) (sheets.ReportExporter, error)
}

var (
	headline = color.New(color.FgCyan, color.Bold).SprintFunc()
	positive = color.New(color.FgGreen, color.Bold).SprintFunc()
	negative = color.New(color.FgRed, color.Bold).SprintFunc()
	warning  = color.New(color.FgYellow).SprintFunc()
)

func newApp(out io.Writer) *cliApp {
	a := &cliApp{out: out, now: time.Now, newSheetsExporter: cli.NewExporter}

	root := &cobra.Command{
		Use:               "contaae-cli",
		Short:             "Small-business finance tools: legacy import, reports and exports",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}
	root.SetOut(out)
	root.SetVersionTemplate(`{{printf "contaae-cli version: %s\n" .Version}}`)
	root.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn or error")

	root.AddCommand(a.migrateCommand(), a.reportCommand(), a.exportCommand(), a.plansCommand())
	a.root = root
	return a
}

func (a *cliApp) Execute() error {
	defer a.close()
	return a.root.Execute()
}

// setup loads configuration and opens the store unless one was injected.
func (a *cliApp) setup(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	if a.logger == nil {
		cli.LoadEnvFile()
		a.logger = cli.SetupLogger(level, log.ComponentApp)
	}
	if a.cfg == nil {
		a.cfg = config.Load()
		if err := a.cfg.Validate(); err != nil {
			return err
		}
	}
	if a.store == nil {
		store, closeStore, err := cli.OpenStore(cmd.Context(), a.logger, a.cfg)
		if err != nil {
			return fmt.Errorf("open %s backend: %w", a.cfg.DataBackend, err)
		}
		a.store = store
		a.closers = append(a.closers, closeStore)
	}
	if a.reports == nil {
		reports, manager := cli.NewReports(a.store, a.cfg.ReportCacheTTL)
		a.reports = reports
		a.closers = append(a.closers, manager.Stop)
	}
	return nil
}

func (a *cliApp) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *cliApp) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// signed colours a money value by its sign.
func signed(m core.Money) string {
	if m.Cents < 0 {
		return negative(m.FormatBRL())
	}
	return positive(m.FormatBRL())
}
