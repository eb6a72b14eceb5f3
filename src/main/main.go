package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"text-extractor/src/config"
	"text-extractor/src/deps"
	"text-extractor/src/eventloop"
	"text-extractor/src/execrun"
	"text-extractor/src/hotkey"
	"text-extractor/src/pipeline"
	"text-extractor/src/runtimeinit"
	"text-extractor/src/settings"
	"text-extractor/src/singleinstance"
	"text-extractor/src/tray"
)

var (
	errDependenciesMissing = errors.New("dependencies missing")
	errAlreadyRunning      = errors.New("text-extractor is already running")
)

type mainOptions struct {
	settingsPath string
	logLevel     string
	noColor      bool

	jsonOutput bool
	standalone bool
	copyHint   bool

	// runner replaces the os/exec runner in tests.
	runner execrun.Runner
}

func main() {
	// systray needs the main OS thread.
	runtime.LockOSThread()

	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"text-extractor"}
	}
	cmd := newRootCmd(&mainOptions{})
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "text-extractor",
		Short:         "Select a screen region, OCR it, and copy the text to the clipboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.settingsPath, "settings", "", "Path to the settings file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the resident with hotkey and panel indicator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(opts)
		},
	}

	extract := &cobra.Command{
		Use:   "extract",
		Short: "Extract text once, delegating to a running resident when there is one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	extract.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")
	extract.Flags().BoolVar(&opts.standalone, "standalone", false, "Never delegate to a resident")

	check := &cobra.Command{
		Use:   "check",
		Short: "Check that the OCR, clipboard and screenshot tools are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	check.Flags().BoolVar(&opts.copyHint, "copy", false, "Copy install commands to the clipboard")

	language := &cobra.Command{
		Use:   "language [code]",
		Short: "Show or set the OCR language",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLanguage(opts, cmd.OutOrStdout(), args)
		},
	}

	languages := &cobra.Command{
		Use:   "languages",
		Short: "List available OCR languages and whether their packs are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLanguages(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	indicator := &cobra.Command{
		Use:       "indicator [on|off]",
		Short:     "Show or set whether the panel indicator is shown",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndicator(opts, cmd.OutOrStdout(), args)
		},
	}

	root.AddCommand(run, extract, check, language, languages, indicator)
	return root
}

func (o *mainOptions) bootstrap() (*runtimeinit.Runtime, error) {
	return runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			SettingsPathOverride: o.settingsPath,
			LogLevelOverride:     o.logLevel,
		},
		Runner: o.runner,
	})
}

func runResident(opts *mainOptions) error {
	rt, err := opts.bootstrap()
	if err != nil {
		return err
	}
	log := rt.Log

	probeCtx, cancelProbe := context.WithTimeout(context.Background(), time.Second)
	port, running := singleinstance.DetectResidentPort(probeCtx)
	cancelProbe()
	if running {
		return fmt.Errorf("%w on port %d", errAlreadyRunning, port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := rt.Settings.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("settings watch stopped")
		}
	}()
	changes, unsubscribe := rt.Settings.Subscribe()
	defer unsubscribe()

	current := rt.Settings.Get()
	var ind *tray.Tray
	loopOpts := eventloop.Options{
		Pipeline: rt.Pipeline,
		Server:   singleinstance.NewServer(log),
		Changes:  changes,
		Log:      log,
	}
	if current.ShowIndicator {
		ind = tray.New(tray.Options{
			Language: settings.LanguageName(current.Language),
			Hotkey:   rt.Config.Hotkey,
			Log:      log,
		})
		loopOpts.Indicator = ind
	}
	loop := eventloop.New(loopOpts)
	if ind != nil {
		ind.SetHandlers(
			func() { loop.Post(eventloop.ActionExtract) },
			func() { loop.Post(eventloop.ActionCheck) },
			func() { loop.Post(eventloop.ActionQuit) },
		)
	}

	if combo, err := hotkey.Parse(rt.Config.Hotkey); err != nil {
		log.Error().Err(err).Msg("hotkey disabled")
	} else {
		go hotkey.Listen(ctx, combo, log, func() { loop.Post(eventloop.ActionExtract) })
	}

	go rt.Pipeline.CheckOnStart(ctx)
	log.Info().Str("hotkey", rt.Config.Hotkey).Bool("indicator", ind != nil).Msg("text-extractor started")

	if ind == nil {
		return ignoreCancel(loop.Run(ctx))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- loop.Run(ctx)
		ind.Quit()
	}()
	ind.Run()
	stop()
	return ignoreCancel(<-errCh)
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// extractResult is the --json shape of an extraction.
type extractResult struct {
	Text      string `json:"text"`
	Words     int    `json:"word_count"`
	Language  string `json:"language"`
	Delegated bool   `json:"delegated"`
	Timestamp string `json:"timestamp"`
}

func runExtract(ctx context.Context, opts *mainOptions, out io.Writer) error {
	rt, err := opts.bootstrap()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	lang := rt.Settings.Language()

	if !opts.standalone {
		text, err := singleinstance.NewClient(rt.Config.CaptureTimeout+rt.Config.ProcessTimeout).Delegate(ctx, singleinstance.KindExtract)
		switch {
		case err == nil:
			rt.Log.Debug().Msg("delegated to resident")
			return printExtract(out, opts.jsonOutput, extractResult{Text: text, Words: len(strings.Fields(text)), Language: lang, Delegated: true})
		case !errors.Is(err, singleinstance.ErrNoResident):
			return err
		}
		rt.Log.Debug().Msg("no resident detected, running standalone")
	}

	res := rt.Pipeline.Extract(ctx)
	if res.Outcome == pipeline.OutcomeClipboardFailed && res.Text != "" {
		// Still useful on stdout.
		_ = printExtract(out, opts.jsonOutput, extractResult{Text: res.Text, Words: res.WordCount, Language: lang})
	}
	if !res.Outcome.Succeeded() {
		_, body := pipeline.Message(res)
		if res.Err != nil {
			return fmt.Errorf("%s: %w", body, res.Err)
		}
		return errors.New(body)
	}
	return printExtract(out, opts.jsonOutput, extractResult{Text: res.Text, Words: res.WordCount, Language: lang})
}

func printExtract(out io.Writer, asJSON bool, r extractResult) error {
	if !asJSON {
		_, err := fmt.Fprintln(out, r.Text)
		return err
	}
	r.Timestamp = time.Now().UTC().Format(time.RFC3339)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func runCheck(ctx context.Context, opts *mainOptions, out io.Writer) error {
	rt, err := opts.bootstrap()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	lang := rt.Settings.Language()
	report := rt.Checker.CheckAll(ctx, lang)
	missing := func(cmd string) bool {
		return slices.ContainsFunc(report, func(d deps.Descriptor) bool { return d.Command == cmd })
	}

	for _, d := range rt.Checker.Catalog {
		printStatus(out, !missing(d.Command), fmt.Sprintf("%s (%s)", d.Command, d.Description))
	}
	if lang != settings.DefaultLanguage {
		pack := deps.LanguagePackDescriptor(lang)
		printStatus(out, !missing(pack.Command), fmt.Sprintf("%s language pack (%s)", settings.LanguageName(lang), pack.Package))
	}

	if report.Ready() {
		fmt.Fprintln(out, color.GreenString("All dependencies are installed and ready!"))
		return nil
	}

	hint := deps.InstallHint(report)
	fmt.Fprintf(out, "\n%s\n", hint)
	if opts.copyHint {
		if err := rt.Publisher.Publish(ctx, hint); err != nil {
			fmt.Fprintln(out, color.YellowString("Could not copy install commands: %v", err))
		} else {
			fmt.Fprintln(out, color.CyanString("Install commands copied to clipboard."))
		}
	}
	return errDependenciesMissing
}

func printStatus(out io.Writer, ok bool, label string) {
	if ok {
		fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), label)
		return
	}
	fmt.Fprintf(out, "%s %s\n", color.RedString("✗"), label)
}

func runLanguage(opts *mainOptions, out io.Writer, args []string) error {
	rt, err := opts.bootstrap()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		code := rt.Settings.Language()
		fmt.Fprintf(out, "%s (%s)\n", code, settings.LanguageName(code))
		return nil
	}

	code := strings.ToLower(strings.TrimSpace(args[0]))
	if err := rt.Settings.SetLanguage(code); err != nil {
		if errors.Is(err, settings.ErrUnknownLanguage) {
			return fmt.Errorf("%w (see 'text-extractor languages')", err)
		}
		return err
	}
	fmt.Fprintf(out, "Language set to %s (%s)\n", code, settings.LanguageName(code))
	return nil
}

func runLanguages(ctx context.Context, opts *mainOptions, out io.Writer) error {
	rt, err := opts.bootstrap()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	installed, err := rt.Engine.InstalledLanguages(ctx)
	if err != nil {
		rt.Log.Warn().Err(err).Msg("could not list installed languages")
	}
	current := rt.Settings.Language()

	for _, l := range settings.Languages() {
		marker := " "
		if l.Code == current {
			marker = "*"
		}
		line := fmt.Sprintf("%s %-8s %-22s %s", marker, l.Code, l.Name, l.Subtitle)
		switch {
		case err != nil:
			fmt.Fprintf(out, "? %s\n", line)
		case slices.Contains(installed, l.Code):
			fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), line)
		default:
			fmt.Fprintf(out, "%s %s\n", color.RedString("✗"), line)
		}
	}
	return nil
}

func runIndicator(opts *mainOptions, out io.Writer, args []string) error {
	rt, err := opts.bootstrap()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		fmt.Fprintln(out, onOff(rt.Settings.Get().ShowIndicator))
		return nil
	}
	show := args[0] == "on"
	if err := rt.Settings.SetShowIndicator(show); err != nil {
		return err
	}
	fmt.Fprintf(out, "Indicator %s (applies the next time the resident starts)\n", onOff(show))
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// normalizeLegacyArgs maps single-dash long flags to GNU style and the old
// --run-once switch to the extract verb.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		switch {
		case arg == "-run-once" || arg == "--run-once":
			normalized[i] = "extract"
		case arg == "-settings":
			normalized[i] = "--settings"
		case strings.HasPrefix(arg, "-settings="):
			normalized[i] = "--settings=" + arg[len("-settings="):]
		case arg == "-log-level":
			normalized[i] = "--log-level"
		case strings.HasPrefix(arg, "-log-level="):
			normalized[i] = "--log-level=" + arg[len("-log-level="):]
		case arg == "-no-color":
			normalized[i] = "--no-color"
		}
	}

	return normalized
}
