package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"sjsage522/tenderscraper/config"
	"sjsage522/tenderscraper/helpers"
	"sjsage522/tenderscraper/internal/tenderboard"
	"sjsage522/tenderscraper/logger"
	scrapeerr "sjsage522/tenderscraper/pkg/errors"
	"sjsage522/tenderscraper/services/export"
	"sjsage522/tenderscraper/services/progress"
	"sjsage522/tenderscraper/services/worker"
)

// flagValues holds command-line overrides of the environment configuration
type flagValues struct {
	prequalification bool
	pages            int
	workers          int
	outputDir        string
	formats          string
	ministry         string
	filterFile       string
	schedule         string
	noProgress       bool
}

func newRootCmd() *cobra.Command {
	flags := &flagValues{}

	root := &cobra.Command{
		Use:           "tenderscraper",
		Short:         "tenderscraper collects public tenders from the Bahrain Tender Board portal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVar(&flags.prequalification, "prequalification", false, "List prequalification tenders only.")
	pf.IntVar(&flags.pages, "pages", 0, "Fetch only the first N pages instead of asking the portal.")
	pf.IntVar(&flags.workers, "workers", 0, "Number of pages fetched in parallel.")
	pf.StringVar(&flags.outputDir, "output-dir", "", "Directory the exports are written to.")
	pf.StringVar(&flags.formats, "formats", "", "Comma separated output formats (csv, xlsx, json, sqlite).")
	pf.StringVar(&flags.ministry, "ministry", "", "Restrict tenders to a ministry, by name or value.")
	pf.StringVar(&flags.filterFile, "filter-file", "", "JSON5 file overriding the listing filter.")
	pf.StringVar(&flags.schedule, "schedule", "", "Cron schedule; the scraper keeps running and scrapes on every tick.")
	pf.BoolVar(&flags.noProgress, "no-progress", false, "Do not render progress bars.")

	root.AddCommand(
		&cobra.Command{
			Use:   "scrape",
			Short: "Scrapes every listing page and writes the configured exports.",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runScrape(cmd, flags)
			},
		},
		&cobra.Command{
			Use:   "ministries",
			Short: "Lists the ministries the portal can filter by.",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMinistries(cmd, flags)
			},
		},
		&cobra.Command{
			Use:   "count",
			Short: "Prints the number of listing pages for the current filter.",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCount(cmd, flags)
			},
		},
	)

	return root
}

// loadConfig reads the environment and applies the flags the user set
func loadConfig(cmd *cobra.Command, flags *flagValues) (*config.Config, error) {
	cfg := config.LoadConfig()
	changed := cmd.Flags().Changed

	if changed("prequalification") {
		cfg.PrequalificationOnly = flags.prequalification
	}
	if changed("pages") {
		cfg.PageLimit = flags.pages
	}
	if changed("workers") {
		cfg.Workers = flags.workers
	}
	if changed("output-dir") {
		cfg.OutputDir = flags.outputDir
	}
	if changed("formats") {
		cfg.OutputFormats = config.ParseFormats(flags.formats)
	}
	if changed("ministry") {
		cfg.Ministry = flags.ministry
	}
	if changed("filter-file") {
		cfg.FilterFile = flags.filterFile
	}
	if changed("schedule") {
		cfg.Schedule = flags.schedule
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runScrape(cmd *cobra.Command, flags *flagValues) error {
	ctx := cmd.Context()
	log := logger.ForWorker()

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("base_url", cfg.BaseURL).
		Int("workers", cfg.Workers).
		Strs("formats", cfg.OutputFormats).
		Msg("Starting application")

	var (
		display  *progress.Display
		observer tenderboard.RowObserver
	)
	if !flags.noProgress && cfg.Schedule == "" {
		display = progress.New(os.Stderr)
		observer = display
	}

	services, err := initializeServices(ctx, cfg, observer)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	ministries, err := services.Ministries(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("ministries", len(ministries)).Msg("Loaded ministry directory")

	filter, err := services.Filter(ctx)
	if err != nil {
		return err
	}

	exporters, err := export.New(cfg.OutputFormats, cfg.OutputDir, cfg.OutputName)
	if err != nil {
		return err
	}

	w := worker.NewWorker(
		services.Client,
		worker.Options{
			Filter:    filter,
			PageLimit: cfg.PageLimit,
			Workers:   cfg.Workers,
			FailFast:  cfg.FailFast,
		},
		exporters,
		services.Publisher,
		helpers.NewLogger(cfg.ErrorLogFile),
	)
	if display != nil {
		w.SetProgress(display)
	}

	if cfg.Schedule != "" {
		return w.Start(ctx, cfg.Schedule)
	}

	summary, err := w.Run(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), summary, exporters)
	return nil
}

func runMinistries(cmd *cobra.Command, flags *flagValues) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	services, err := initializeServices(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	ministries, err := services.Ministries(cmd.Context())
	if err != nil {
		return err
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Value", "Ministry"})
	for _, m := range ministries {
		t.AppendRow(table.Row{m.Value, m.Name})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d ministries", len(ministries))})
	t.Render()
	return nil
}

func runCount(cmd *cobra.Command, flags *flagValues) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}
	services, err := initializeServices(cmd.Context(), cfg, nil)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	filter, err := services.Filter(cmd.Context())
	if err != nil {
		return err
	}
	pages, err := services.Client.CountPages(cmd.Context(), filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), pages)
	return nil
}

// exitCode is 2 for errors in the invocation itself and 1 for failed runs
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case scrapeerr.IsType(err, scrapeerr.ErrorTypeConfiguration), scrapeerr.IsType(err, scrapeerr.ErrorTypeValidation):
		return 2
	default:
		return 1
	}
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault
	t.SetOutputMirror(out)
	return t
}

func printSummary(out io.Writer, s worker.Summary, exporters []export.Exporter) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Pages", "Records", "Empty pages", "Failed pages", "Duration"})
	t.AppendRow(table.Row{s.Pages, s.Records, s.EmptyPages, s.FailedPages, s.Duration.Round(time.Millisecond).String()})
	t.Render()

	if len(exporters) == 0 {
		return
	}
	files := newTable(out)
	files.AppendHeader(table.Row{"Format", "File"})
	for _, e := range exporters {
		files.AppendRow(table.Row{e.Name(), e.Path()})
	}
	files.AppendFooter(table.Row{"", strconv.Itoa(len(exporters)) + " files"})
	files.Render()
}
