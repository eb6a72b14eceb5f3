package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"text-extractor/src/ocr"
)

// Request holds the per-extraction temp paths. Names carry a timestamp and
// a random suffix so concurrent processes never share files.
type Request struct {
	ID             string
	Language       string
	ScreenshotPath string
	OutputStem     string
}

// NewRequest builds a request rooted in tempDir.
func NewRequest(tempDir, language string, now time.Time) Request {
	id := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()[:8])
	return Request{
		ID:             id,
		Language:       language,
		ScreenshotPath: filepath.Join(tempDir, "text-extractor-screenshot-"+id+".png"),
		OutputStem:     filepath.Join(tempDir, "text-extracted-"+id),
	}
}

// OutputPath is the text file the OCR engine writes.
func (r Request) OutputPath() string {
	if r.OutputStem == "" {
		return ""
	}
	return ocr.OutputPath(r.OutputStem)
}

// Cleanup removes the request's temp files. Missing files and removal
// errors are ignored, so calling it repeatedly is harmless.
func Cleanup(r Request) {
	for _, p := range []string{r.ScreenshotPath, r.OutputPath()} {
		if p == "" {
			continue
		}
		_ = os.Remove(p)
	}
}
