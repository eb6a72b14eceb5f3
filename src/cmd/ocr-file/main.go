package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"text-extractor/src/config"
	"text-extractor/src/execrun"
	"text-extractor/src/logutil"
	"text-extractor/src/ocr"
	"text-extractor/src/pipeline"
	"text-extractor/src/settings"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

type cliOptions struct {
	filePath   string
	language   string
	jsonOutput bool
	verbose    bool

	stdin  io.Reader
	runner execrun.Runner
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args))
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"ocr-file"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ocr-file",
		Short:         "Run OCR on a PNG file without capturing the screen",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(cmd.Context(), *opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", settings.DefaultLanguage, "OCR language code")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(ctx context.Context, opts cliOptions, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := zerolog.Nop()
	if opts.verbose {
		l, err := logutil.New(logutil.Options{Level: "debug", Output: errOut})
		if err == nil {
			log = l
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if _, ok := settings.LookupLanguage(opts.language); !ok {
		return fmt.Errorf("%w: %q", settings.ErrUnknownLanguage, opts.language)
	}

	imageData, err := readInput(opts)
	if err != nil {
		return err
	}
	log.Debug().Int("bytes", len(imageData)).Str("source", opts.filePath).Msg("read input")
	if len(imageData) > maxFileSize {
		return fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if err := validatePNG(imageData); err != nil {
		return err
	}

	runner := opts.runner
	if runner == nil {
		runner = execrun.NewExecRunner()
	}
	engine := ocr.Engine{Tool: cfg.OCRTool, Runner: runner, Timeout: cfg.ProcessTimeout}

	start := time.Now()
	text, err := recognize(ctx, engine, cfg.TempDir, opts.language, imageData)
	elapsed := time.Since(start)
	if err != nil {
		log.Debug().Err(err).Dur("elapsed", elapsed).Msg("ocr failed")
		return fmt.Errorf("OCR failed: %w", err)
	}
	log.Debug().Dur("elapsed", elapsed).Int("chars", len(text)).Str("text", logutil.Sanitize(text)).Msg("ocr completed")

	return outputResult(out, text, opts.filePath, elapsed, opts.jsonOutput)
}

func readInput(opts cliOptions) ([]byte, error) {
	if opts.filePath == "-" {
		in := opts.stdin
		if in == nil {
			in = os.Stdin
		}
		data, err := readLimited(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return data, nil
	}
	f, err := os.Open(opts.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", opts.filePath, err)
	}
	defer f.Close()
	data, err := readLimited(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", opts.filePath, err)
	}
	return data, nil
}

// readLimited stops one byte past maxFileSize so oversized input is detectable.
func readLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxFileSize+1))
}

// recognize stages the image under a request's temp paths, so the file
// layout and cleanup match a screen extraction.
func recognize(ctx context.Context, engine ocr.Engine, tempDir, language string, image []byte) (string, error) {
	req := pipeline.NewRequest(tempDir, language, time.Now())
	defer pipeline.Cleanup(req)

	if err := os.WriteFile(req.ScreenshotPath, image, 0o600); err != nil {
		return "", fmt.Errorf("stage image: %w", err)
	}
	if err := engine.Recognize(ctx, req.ScreenshotPath, req.OutputStem, language); err != nil {
		return "", err
	}
	data, err := os.ReadFile(req.OutputPath())
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	text := strings.TrimSpace(strings.ToValidUTF8(string(data), "�"))
	if text == "" {
		return "", errors.New("no text found")
	}
	return text, nil
}

func validatePNG(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("input file is empty")
	}
	if len(data) < 8 || !bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		switch {
		case arg == "-file":
			normalized[i] = "--file"
		case strings.HasPrefix(arg, "-file="):
			normalized[i] = "--file=" + arg[len("-file="):]
		case arg == "-json":
			normalized[i] = "--json"
		case strings.HasPrefix(arg, "-json="):
			normalized[i] = "--json=" + arg[len("-json="):]
		case arg == "-verbose":
			normalized[i] = "--verbose"
		case arg == "-language":
			normalized[i] = "--language"
		case strings.HasPrefix(arg, "-language="):
			normalized[i] = "--language=" + arg[len("-language="):]
		}
	}

	return normalized
}

type OCRResult struct {
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	CharCount int     `json:"character_count"`
	WordCount int     `json:"word_count"`
}

func outputResult(out io.Writer, text, sourcePath string, elapsed time.Duration, jsonOutput bool) error {
	if !jsonOutput {
		_, err := fmt.Fprint(out, text)
		return err
	}

	result := OCRResult{
		Text:      text,
		Source:    sourcePath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
		CharCount: len(text),
		WordCount: len(strings.Fields(text)),
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
