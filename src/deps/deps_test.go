package deps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"text-extractor/src/execrun/exectest"
	"text-extractor/src/ocr"
)

type fakeLanguages struct {
	installed map[string]bool
	calls     []string
}

func (f *fakeLanguages) IsInstalled(_ context.Context, code string) bool {
	f.calls = append(f.calls, code)
	return f.installed[code]
}

func stockCatalog() []Descriptor {
	return Catalog(CatalogOptions{OCRTool: "tesseract", ClipboardTool: "xclip", CaptureTool: "gnome-screenshot"})
}

func TestCatalog(t *testing.T) {
	c := stockCatalog()
	require.Len(t, c, 3)
	assert.Equal(t, Descriptor{Command: "tesseract", Package: "tesseract-ocr", Description: "OCR engine for text extraction"}, c[0])
	assert.Equal(t, "xclip", c[1].Package)
	assert.Equal(t, "gnome-screenshot", c[2].Package)

	custom := Catalog(CatalogOptions{OCRTool: "/opt/bin/tesseract", CaptureTool: "spectacle"})
	require.Len(t, custom, 2, "no clipboard descriptor for the native backend")
	assert.Equal(t, "tesseract-ocr", custom[0].Package)
	assert.Equal(t, "spectacle", custom[1].Package)
}

func TestCheckAllReady(t *testing.T) {
	r := exectest.New().On("which", exectest.Which("tesseract", "xclip", "gnome-screenshot"))
	langs := &fakeLanguages{installed: map[string]bool{"tam": true}}
	c := &Checker{Catalog: stockCatalog(), Commands: WhichProbe{Runner: r}, Languages: langs}

	report := c.CheckAll(context.Background(), "tam")
	assert.True(t, report.Ready())
	assert.Len(t, r.CallsTo("which"), 3)
	assert.Equal(t, []string{"tam"}, langs.calls)
}

func TestCheckAllReportsMissingInCatalogOrder(t *testing.T) {
	r := exectest.New().On("which", exectest.Which("xclip"))
	c := &Checker{Catalog: stockCatalog(), Commands: WhichProbe{Runner: r}, Languages: &fakeLanguages{}}

	report := c.CheckAll(context.Background(), "tam")
	require.Len(t, report, 3)
	assert.Equal(t, "tesseract-ocr", report[0].Package)
	assert.Equal(t, "gnome-screenshot", report[1].Package)
	assert.Equal(t, LanguagePackDescriptor("tam"), report[2])
	assert.Equal(t, "Tesseract language pack for Tamil", report[2].Description)
}

func TestCheckAllNeverProbesBaseLanguage(t *testing.T) {
	r := exectest.New().On("which", exectest.Which("tesseract", "xclip", "gnome-screenshot"))
	langs := &fakeLanguages{}
	c := &Checker{Catalog: stockCatalog(), Commands: WhichProbe{Runner: r}, Languages: langs}

	assert.True(t, c.CheckAll(context.Background(), "eng").Ready())
	assert.True(t, c.CheckAll(context.Background(), "").Ready())
	assert.Empty(t, langs.calls)
}

func TestCheckAllSpawnFailureMeansMissing(t *testing.T) {
	c := &Checker{Catalog: stockCatalog(), Commands: WhichProbe{Runner: exectest.New()}}
	assert.Len(t, c.CheckAll(context.Background(), "eng"), 3)
}

func TestLookPathProbe(t *testing.T) {
	p := LookPathProbe{LookPath: func(name string) (string, error) {
		if name == "xclip" {
			return "/usr/bin/xclip", nil
		}
		return "", errors.New("missing")
	}}
	assert.True(t, p.Exists(context.Background(), "xclip"))
	assert.False(t, p.Exists(context.Background(), "tesseract"))
	assert.False(t, p.Exists(context.Background(), " "))
}

func TestEngineLanguageProbeMatchesTokens(t *testing.T) {
	r := exectest.New().On("tesseract", exectest.Succeed("List of available languages (3):\neng\nchi_sim\nTAM\n"))
	p := EngineLanguageProbe{Engine: ocr.Engine{Tool: "tesseract", Runner: r}}

	assert.True(t, p.IsInstalled(context.Background(), "tam"))
	assert.True(t, p.IsInstalled(context.Background(), "CHI_SIM"))
	assert.False(t, p.IsInstalled(context.Background(), "chi"))
	assert.False(t, p.IsInstalled(context.Background(), ""))

	broken := EngineLanguageProbe{Engine: ocr.Engine{Tool: "tesseract", Runner: exectest.New()}}
	assert.False(t, broken.IsInstalled(context.Background(), "eng"))
}

func TestInstallHintListsEveryPackageOnce(t *testing.T) {
	report := Report{
		{Command: "tesseract", Package: "tesseract-ocr"},
		{Command: "xclip", Package: "xclip"},
		{Command: "gnome-screenshot", Package: "gnome-screenshot"},
		{Command: "xclip", Package: "xclip"},
		LanguagePackDescriptor("tam"),
	}
	hint := InstallHint(report)

	lines := strings.Split(hint, "\n")
	var apt, dnf, pacman string
	for _, l := range lines {
		switch {
		case strings.HasPrefix(l, "sudo apt"):
			apt = l
		case strings.HasPrefix(l, "sudo dnf"):
			dnf = l
		case strings.HasPrefix(l, "sudo pacman"):
			pacman = l
		}
	}

	for _, pkg := range []string{"tesseract-ocr", "xclip", "gnome-screenshot", "tesseract-ocr-tam"} {
		assert.Equal(t, 1, countField(apt, pkg), "apt line should list %s once: %q", pkg, apt)
	}
	assert.Equal(t, "sudo dnf install tesseract xclip gnome-screenshot tesseract-langpack-tam", dnf)
	assert.Equal(t, "sudo pacman -S tesseract xclip gnome-screenshot tesseract-data-tam", pacman)
	assert.Contains(t, hint, "# Ubuntu/Debian:")
}

func TestInstallHintEmptyReport(t *testing.T) {
	assert.Empty(t, InstallHint(nil))
}

func TestSummary(t *testing.T) {
	s := Summary(Report{{Package: "xclip", Description: "Clipboard utility"}})
	assert.Equal(t, "• xclip - Clipboard utility", s)
}

func countField(line, field string) int {
	n := 0
	for _, f := range strings.Fields(line) {
		if f == field {
			n++
		}
	}
	return n
}
