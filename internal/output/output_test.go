package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("🔍", "Checking generator...")

	output := buf.String()
	assert.Contains(t, output, "🔍")
	assert.Contains(t, output, "Checking generator...")
}

func TestWriter_Success_PrintsCheckmark(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("Index complete!")

	output := buf.String()
	assert.Contains(t, output, "✅")
	assert.Contains(t, output, "Index complete!")
}

func TestWriter_Warning_PrintsWarningIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Warning("Generator not available")

	output := buf.String()
	assert.Contains(t, output, "⚠️")
	assert.Contains(t, output, "Generator not available")
}

func TestWriter_Error_PrintsErrorIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Error("Failed to connect")

	output := buf.String()
	assert.Contains(t, output, "❌")
	assert.Contains(t, output, "Failed to connect")
}

func TestWriter_NoColorByDefault(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("done")
	w.Error("failed")

	assert.NotContains(t, buf.String(), "\033[")
}

func TestWriter_ColorWhenEnabled(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &Writer{out: buf, useColor: true}

	w.Success("done")

	assert.Contains(t, buf.String(), ansiGreen)
	assert.Contains(t, buf.String(), ansiReset)
}

func TestIsTTY_BufferIsNotTerminal(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	assert.True(t, DetectNoColor())
}

func TestWriter_Answer_TrimsAndPads(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Answer("\nRavana was slain by Rama.\n")

	assert.Equal(t, "\nRavana was slain by Rama.\n\n", buf.String())
}

func TestWriter_Passage_PrintsCitationAndText(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Passage(1, "ramayana.txt", 214, 0.912, "Rama drew the bow.\nThe arrow flew true.")

	output := buf.String()
	assert.Contains(t, output, "[1] ramayana.txt, page 214 (score 0.912)")
	assert.Contains(t, output, "  Rama drew the bow.")
	assert.Contains(t, output, "  The arrow flew true.")
}

func TestWriter_Progress_PrintsProgressBar(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(50, 100, "Indexing documents")

	output := buf.String()
	assert.Contains(t, output, "50%")
	assert.Contains(t, output, "Indexing documents")
}

func TestWriter_Progress_ZeroTotal_NoOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Progress(0, 0, "Processing")

	assert.Empty(t, buf.String())
}

func TestWriter_Statusf_FormatsMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Statusf("📂", "Found %d documents in %s", 2, "/corpus")

	output := buf.String()
	assert.Contains(t, output, "📂")
	assert.Contains(t, output, "Found 2 documents in /corpus")
}

func TestProgressBar_Render(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		total    int
		width    int
		wantFull int
	}{
		{name: "0 percent", current: 0, total: 100, width: 10, wantFull: 0},
		{name: "50 percent", current: 50, total: 100, width: 10, wantFull: 5},
		{name: "100 percent", current: 100, total: 100, width: 10, wantFull: 10},
		{name: "25 percent", current: 25, total: 100, width: 20, wantFull: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, tt.width)

			assert.Equal(t, tt.wantFull, strings.Count(bar, "█"))
			assert.Equal(t, tt.width, len([]rune(bar)))
		})
	}
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Newline()

	assert.Equal(t, "\n", buf.String())
}
