// Package deps verifies that the external tools the capture pipeline shells
// out to are installed, and explains how to install whatever is missing.
package deps

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"text-extractor/src/ocr"
	"text-extractor/src/settings"
)

// Descriptor names one required external tool and the package providing it.
type Descriptor struct {
	Command     string
	Package     string
	Description string
}

// Report lists missing dependencies in catalog order; empty means ready.
type Report []Descriptor

func (r Report) Ready() bool { return len(r) == 0 }

// Packages returns the distinct package names in report order.
func (r Report) Packages() []string {
	seen := make(map[string]bool, len(r))
	var out []string
	for _, d := range r {
		if d.Package == "" || seen[d.Package] {
			continue
		}
		seen[d.Package] = true
		out = append(out, d.Package)
	}
	return out
}

type CatalogOptions struct {
	OCRTool       string
	ClipboardTool string // empty when clipboard writes do not use a tool
	CaptureTool   string
}

// Catalog returns the static descriptors for the configured tools. Package
// names follow Debian naming; InstallHint maps them for other managers.
func Catalog(opts CatalogOptions) []Descriptor {
	var out []Descriptor
	if opts.OCRTool != "" {
		out = append(out, Descriptor{Command: opts.OCRTool, Package: packageFor(opts.OCRTool, "tesseract", "tesseract-ocr"), Description: "OCR engine for text extraction"})
	}
	if opts.ClipboardTool != "" {
		out = append(out, Descriptor{Command: opts.ClipboardTool, Package: packageFor(opts.ClipboardTool, "xclip", "xclip"), Description: "Clipboard utility"})
	}
	if opts.CaptureTool != "" {
		out = append(out, Descriptor{Command: opts.CaptureTool, Package: packageFor(opts.CaptureTool, "gnome-screenshot", "gnome-screenshot"), Description: "Screenshot utility"})
	}
	return out
}

// packageFor keeps the known package name for the stock tool and otherwise
// assumes the package is named after the command.
func packageFor(command, stock, pkg string) string {
	base := command
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if base == stock {
		return pkg
	}
	return base
}

// LanguagePackDescriptor is the synthesized entry for a missing language pack.
func LanguagePackDescriptor(code string) Descriptor {
	return Descriptor{
		Command:     "tesseract-" + code,
		Package:     "tesseract-ocr-" + code,
		Description: "Tesseract language pack for " + settings.LanguageName(code),
	}
}

type Checker struct {
	Catalog   []Descriptor
	Commands  CommandProbe
	Languages LanguageProbe
}

// CheckAll probes every catalog command concurrently, then the language
// pack. The base language is assumed present and never probed.
func (c *Checker) CheckAll(ctx context.Context, language string) Report {
	present := make([]bool, len(c.Catalog))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range c.Catalog {
		i, d := i, d
		g.Go(func() error {
			present[i] = c.Commands.Exists(gctx, d.Command)
			return nil
		})
	}
	_ = g.Wait()

	var report Report
	for i, d := range c.Catalog {
		if !present[i] {
			report = append(report, d)
		}
	}

	code := strings.TrimSpace(language)
	if code == "" {
		code = ocr.BaseLanguage
	}
	if code != ocr.BaseLanguage && c.Languages != nil && !c.Languages.IsInstalled(ctx, code) {
		report = append(report, LanguagePackDescriptor(code))
	}
	return report
}

// Summary renders one bullet per missing dependency.
func Summary(r Report) string {
	lines := make([]string, 0, len(r))
	for _, d := range r {
		lines = append(lines, fmt.Sprintf("• %s - %s", d.Package, d.Description))
	}
	return strings.Join(lines, "\n")
}
