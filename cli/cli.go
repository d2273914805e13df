// Package cli provides the mdlinkcheck command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/mdlinkcheck/checker"
	"github.com/lukemcguire/mdlinkcheck/config"
	"github.com/lukemcguire/mdlinkcheck/result"
	"github.com/lukemcguire/mdlinkcheck/source"
	"github.com/lukemcguire/mdlinkcheck/tui"
)

// ErrLinksFailed is returned when the run completed but found broken or
// errored links, or documents that could not be read.
var ErrLinksFailed = errors.New("link check found failures")

const (
	rootUse              = "mdlinkcheck"
	rootShortDescription = "check HTTP(S) links in Markdown documents"
	rootLongDescription  = `mdlinkcheck extracts http:// and https:// links from Markdown documents and
probes each one, reporting it as valid, broken (bad status) or errored
(timeout or connection failure). The exit status is 1 when anything failed.`

	fileUse       = "file <path>"
	filesUse      = "files <paths...>"
	dirUse        = "dir <path>"
	projectUse    = "project [root]"
	defaultTarget = "."

	configFlagName         = "config"
	rootFlagName           = "root"
	formatFlagName         = "format"
	logLevelFlagName       = "log-level"
	timeoutFlagName        = "timeout"
	maxRedirectsFlagName   = "max-redirects"
	concurrencyFlagName    = "concurrency"
	docConcurrencyFlagName = "doc-concurrency"
	retriesFlagName        = "retries"
	retryDelayFlagName     = "retry-delay"
	rateLimitFlagName      = "rate-limit"
	fixedRateFlagName      = "fixed-rate"
	userAgentFlagName      = "user-agent"
	fallbackGETFlagName    = "fallback-get"
	robotsFlagName         = "robots"
	tuiFlagName            = "tui"

	noMarkdownFilesFormat = "No Markdown files found in directory: %s\n"
)

// Execute runs the mdlinkcheck application.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}

// app carries state shared by the subcommands of one invocation.
type app struct {
	configPath string
	flags      config.Config
	cfg        config.Config
	logger     *slog.Logger
}

func newApp() *app {
	return &app{flags: config.Default()}
}

func newRootCommand() *cobra.Command {
	return newApp().rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return a.configure(command)
		},
	}

	flags := rootCommand.PersistentFlags()
	flags.StringVar(&a.configPath, configFlagName, "", "YAML configuration file")
	flags.StringVar(&a.flags.Root, rootFlagName, a.flags.Root, "project root that relative paths are resolved against")
	flags.StringVar(&a.flags.Format, formatFlagName, a.flags.Format, "output format: text, json or csv")
	flags.StringVar(&a.flags.LogLevel, logLevelFlagName, a.flags.LogLevel, "log level: debug, info, warn or error")
	flags.DurationVar(&a.flags.Timeout, timeoutFlagName, a.flags.Timeout, "timeout for each request hop")
	flags.IntVar(&a.flags.MaxRedirects, maxRedirectsFlagName, a.flags.MaxRedirects, "redirects followed before a link is reported as errored")
	flags.IntVar(&a.flags.Concurrency, concurrencyFlagName, a.flags.Concurrency, "concurrent probes per document (negative for unbounded)")
	flags.IntVar(&a.flags.DocumentConcurrency, docConcurrencyFlagName, a.flags.DocumentConcurrency, "documents checked concurrently")
	flags.IntVar(&a.flags.Retries, retriesFlagName, a.flags.Retries, "retries for transient failures")
	flags.DurationVar(&a.flags.RetryDelay, retryDelayFlagName, a.flags.RetryDelay, "base delay between retries")
	flags.IntVar(&a.flags.RateLimit, rateLimitFlagName, a.flags.RateLimit, "initial requests per second (0 disables rate limiting)")
	flags.BoolVar(&a.flags.FixedRate, fixedRateFlagName, a.flags.FixedRate, "keep the rate limit constant instead of adapting to response times")
	flags.StringVar(&a.flags.UserAgent, userAgentFlagName, a.flags.UserAgent, "user agent string")
	flags.BoolVar(&a.flags.FallbackGET, fallbackGETFlagName, a.flags.FallbackGET, "retry with GET when HEAD is rejected with 405 or 501")
	flags.BoolVar(&a.flags.RespectRobots, robotsFlagName, a.flags.RespectRobots, "report links disallowed by robots.txt instead of probing them")
	flags.BoolVar(&a.flags.TUI, tuiFlagName, a.flags.TUI, "show an interactive progress view")

	rootCommand.AddCommand(
		a.newFileCommand(),
		a.newFilesCommand(),
		a.newDirCommand(),
		a.newProjectCommand(),
	)
	return rootCommand
}

// configure resolves the effective configuration: defaults, config file,
// environment, then any flag the user set explicitly.
func (a *app) configure(command *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		if err := cfg.LoadFile(a.configPath); err != nil {
			return err
		}
	}
	cfg.ApplyEnv()

	flags := command.Flags()
	overrides := []struct {
		name  string
		apply func()
	}{
		{rootFlagName, func() { cfg.Root = a.flags.Root }},
		{formatFlagName, func() { cfg.Format = a.flags.Format }},
		{logLevelFlagName, func() { cfg.LogLevel = a.flags.LogLevel }},
		{timeoutFlagName, func() { cfg.Timeout = a.flags.Timeout }},
		{maxRedirectsFlagName, func() { cfg.MaxRedirects = a.flags.MaxRedirects }},
		{concurrencyFlagName, func() { cfg.Concurrency = a.flags.Concurrency }},
		{docConcurrencyFlagName, func() { cfg.DocumentConcurrency = a.flags.DocumentConcurrency }},
		{retriesFlagName, func() { cfg.Retries = a.flags.Retries }},
		{retryDelayFlagName, func() { cfg.RetryDelay = a.flags.RetryDelay }},
		{rateLimitFlagName, func() { cfg.RateLimit = a.flags.RateLimit }},
		{fixedRateFlagName, func() { cfg.FixedRate = a.flags.FixedRate }},
		{userAgentFlagName, func() { cfg.UserAgent = a.flags.UserAgent }},
		{fallbackGETFlagName, func() { cfg.FallbackGET = a.flags.FallbackGET }},
		{robotsFlagName, func() { cfg.RespectRobots = a.flags.RespectRobots }},
		{tuiFlagName, func() { cfg.TUI = a.flags.TUI }},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			o.apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(command.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) newFileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   fileUse,
		Short: "check the links in one Markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return a.run(command, arguments, func(w io.Writer, report result.AggregateReport) {
				result.PrintSingle(w, arguments[0], report)
			})
		},
	}
}

func (a *app) newFilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   filesUse,
		Short: "check the links in a list of Markdown files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			var header strings.Builder
			fmt.Fprintf(&header, "Files Processed (%d):", len(arguments))
			for _, path := range arguments {
				header.WriteString("\n  - " + path)
			}
			return a.run(command, arguments, func(w io.Writer, report result.AggregateReport) {
				result.PrintConsolidated(w, header.String(), report)
			})
		},
	}
}

func (a *app) newDirCommand() *cobra.Command {
	return &cobra.Command{
		Use:   dirUse,
		Short: "check the links in every *.md file below a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			dir := arguments[0]
			ids, err := a.loader().Directory(dir)
			if err != nil {
				return err
			}
			return a.runScan(command, dir, ids, "Directory Scanned: "+dir)
		},
	}
}

func (a *app) newProjectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   projectUse,
		Short: "check the links in every Markdown file of a project, honouring .gitignore",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			dir := defaultTarget
			if len(arguments) == 1 {
				dir = arguments[0]
			}
			ids, err := a.loader().Project(dir)
			if err != nil {
				return err
			}
			return a.runScan(command, dir, ids, "Project Scanned: "+dir)
		},
	}
}

func (a *app) runScan(command *cobra.Command, dir string, ids []string, header string) error {
	if len(ids) == 0 {
		_, err := fmt.Fprintf(command.OutOrStdout(), noMarkdownFilesFormat, dir)
		return err
	}
	return a.run(command, ids, func(w io.Writer, report result.AggregateReport) {
		result.PrintConsolidated(w, header, report)
	})
}

func (a *app) loader() *source.Loader {
	return source.NewLoader(a.cfg.Root, a.cfg.DocumentConcurrency, a.logger)
}

// run loads ids, checks them and writes the report in the configured format.
// printText renders the text format.
func (a *app) run(command *cobra.Command, ids []string, printText func(io.Writer, result.AggregateReport)) error {
	ctx := command.Context()
	start := time.Now()

	docs := a.loader().Load(ctx, ids)

	var report result.AggregateReport
	var err error
	if a.cfg.TUI {
		report, err = a.checkWithTUI(ctx, command, docs)
	} else {
		c := checker.New(a.cfg.CheckerConfig(a.logger), nil)
		report, err = c.CheckDocuments(ctx, docs)
		c.Close()
	}
	if err != nil {
		return err
	}

	a.logger.Info("run complete",
		"run_id", report.RunID,
		"documents", len(ids),
		"links", report.Totals.Links,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	out := command.OutOrStdout()
	switch a.cfg.Format {
	case config.FormatJSON:
		err = result.WriteJSON(out, report)
	case config.FormatCSV:
		err = result.WriteCSV(out, report)
	default:
		// The TUI already rendered a summary.
		if !a.cfg.TUI {
			printText(out, report)
		}
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if report.HasFailures() {
		return ErrLinksFailed
	}
	return nil
}

func (a *app) checkWithTUI(ctx context.Context, command *cobra.Command, docs []checker.Document) (result.AggregateReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progressCh := make(chan checker.CheckEvent, 100)
	c := checker.New(a.cfg.CheckerConfig(a.logger), progressCh)
	defer c.Close()

	model := tui.NewModel(ctx, cancel, c, docs, progressCh)
	program := tea.NewProgram(model, tea.WithOutput(command.ErrOrStderr()))

	finalModel, err := program.Run()
	if err != nil {
		return result.AggregateReport{}, fmt.Errorf("run tui: %w", err)
	}

	final := finalModel.(tui.Model)
	if !final.Done() {
		return result.AggregateReport{}, context.Canceled
	}
	if final.Err() != nil {
		return result.AggregateReport{}, final.Err()
	}
	return *final.Report(), nil
}
