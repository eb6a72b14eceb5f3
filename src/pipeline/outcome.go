package pipeline

import (
	"fmt"

	"text-extractor/src/deps"
)

// State is the pipeline's position in capture → recognize → extract → publish.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateRecognizing
	StateExtracting
	StatePublishing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateRecognizing:
		return "recognizing"
	case StateExtracting:
		return "extracting"
	case StatePublishing:
		return "publishing"
	default:
		return "unknown"
	}
}

// Outcome is how an extraction ended.
type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeBusy
	OutcomeDependenciesMissing
	OutcomeCancelled
	OutcomeCaptureFailed
	OutcomeLanguageMissing
	OutcomeOCRFailed
	OutcomeOutputMissing
	OutcomeOutputUnreadable
	OutcomeNoText
	OutcomeClipboardFailed
	OutcomeInternal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeBusy:
		return "busy"
	case OutcomeDependenciesMissing:
		return "dependencies-missing"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeCaptureFailed:
		return "capture-failed"
	case OutcomeLanguageMissing:
		return "language-missing"
	case OutcomeOCRFailed:
		return "ocr-failed"
	case OutcomeOutputMissing:
		return "output-missing"
	case OutcomeOutputUnreadable:
		return "output-unreadable"
	case OutcomeNoText:
		return "no-text"
	case OutcomeClipboardFailed:
		return "clipboard-failed"
	case OutcomeInternal:
		return "internal-error"
	default:
		return "unknown"
	}
}

// Succeeded is true only when text reached the clipboard.
func (o Outcome) Succeeded() bool { return o == OutcomeDone }

// Result describes one finished Extract call.
type Result struct {
	Outcome   Outcome
	Request   Request
	Text      string // set for Done and ClipboardFailed
	WordCount int
	Report    deps.Report // set for DependenciesMissing
	// HintCopied reports whether install commands were put on the clipboard.
	HintCopied bool
	Err        error
}

const (
	title        = "Text Extractor"
	titleMissing = "Text Extractor - Missing Dependencies"
)

// Message is the notification shown for a result.
func Message(r Result) (string, string) {
	switch r.Outcome {
	case OutcomeDone:
		return title, fmt.Sprintf("Extracted %s and copied to clipboard!", plural(r.WordCount, "word"))
	case OutcomeBusy:
		return title, "Extraction already in progress..."
	case OutcomeDependenciesMissing:
		body := "Missing dependencies:\n" + deps.Summary(r.Report)
		if r.HintCopied {
			body += "\n\nInstall commands copied to clipboard."
		} else {
			body += "\n\nRun 'text-extractor check' for install commands."
		}
		return titleMissing, body
	case OutcomeCancelled:
		return title, "Screenshot was cancelled"
	case OutcomeCaptureFailed:
		return title, "Screenshot failed"
	case OutcomeLanguageMissing:
		return title, "Language pack not installed. Check dependencies."
	case OutcomeOCRFailed:
		return title, "OCR failed. Please try again."
	case OutcomeOutputMissing:
		return title, "OCR output file not found"
	case OutcomeOutputUnreadable:
		return title, "Failed to read OCR output"
	case OutcomeNoText:
		return title, "No text found in the selected area"
	case OutcomeClipboardFailed:
		return title, "Text extracted but failed to copy to clipboard"
	default:
		return title, "Failed to process extracted text"
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
