package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"text-extractor/src/execrun"
	"text-extractor/src/execrun/exectest"
)

func TestArgs(t *testing.T) {
	e := Engine{Tool: "tesseract"}
	assert.Equal(t, []string{"tesseract", "/tmp/a.png", "/tmp/out", "-l", "tam"}, e.RecognizeArgs("/tmp/a.png", "/tmp/out", "tam"))
	assert.Equal(t, []string{"tesseract", "--list-langs"}, e.ListLangsArgs())
	assert.Equal(t, "tesseract", Engine{}.ListLangsArgs()[0])
	assert.Equal(t, "/tmp/out.txt", OutputPath("/tmp/out"))
}

func TestParseLanguageList(t *testing.T) {
	out := []byte("List of available languages in \"/usr/share/tesseract-ocr/5/tessdata/\" (3):\nENG\nosd\n\nchi_sim\n")
	assert.Equal(t, []string{"eng", "osd", "chi_sim"}, ParseLanguageList(out))
	assert.Empty(t, ParseLanguageList(nil))
}

func TestClassifyStderr(t *testing.T) {
	tests := []struct {
		line string
		want error
	}{
		{"Error opening data file /usr/share/tessdata/tam.traineddata: file not found", ErrLanguageMissing},
		{"Failed loading language 'tam'", ErrLanguageMissing},
		{"language pack not installed", ErrLanguageMissing},
		{"Error in pixReadStream: Unknown format", ErrRecognitionFailed},
		{"", ErrRecognitionFailed},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, ClassifyStderr(tt.line), tt.want, tt.line)
	}
}

func TestRecognizeClassifiesFailures(t *testing.T) {
	r := exectest.New().On("tesseract", exectest.Exit(1, "Failed loading language 'tam'"))
	err := Engine{Tool: "tesseract", Runner: r}.Recognize(context.Background(), "a.png", "out", "tam")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLanguageMissing)

	calls := r.CallsTo("tesseract")
	require.Len(t, calls, 1)
	assert.True(t, calls[0].CaptureStderr)
}

func TestRecognizeSpawnFailure(t *testing.T) {
	r := exectest.New()
	err := Engine{Runner: r}.Recognize(context.Background(), "a.png", "out", "eng")
	assert.ErrorIs(t, err, ErrRecognitionFailed)
}

func TestInstalledLanguages(t *testing.T) {
	r := exectest.New().On("tesseract", exectest.Succeed("List of available languages (2):\neng\ntam\n"))
	langs, err := Engine{Tool: "tesseract", Runner: r}.InstalledLanguages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eng", "tam"}, langs)

	failing := exectest.New().On("tesseract", func(context.Context, execrun.Command) execrun.Outcome {
		return execrun.Failed(errors.New("boom"))
	})
	_, err = Engine{Tool: "tesseract", Runner: failing}.InstalledLanguages(context.Background())
	assert.Error(t, err)
}
