package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observedLine struct {
	text  string
	level slog.Level
}

type testObserver struct {
	lines []observedLine
}

func (o *testObserver) ObserveLine(text string, level slog.Level) {
	o.lines = append(o.lines, observedLine{text: text, level: level})
}

func TestSink_WriteLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(newHandler(&buf, "json", slog.LevelDebug))
	observer := &testObserver{}
	sink := NewSink(logger, observer)

	sink.WriteLine("\n****  Kubernetes Pod Events  ****", slog.LevelInfo)
	sink.WriteLine("", slog.LevelInfo)
	sink.WriteLine("Timed out waiting for pods to be ready", slog.LevelError)

	records := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, records, 2)

	var last map[string]any
	require.NoError(t, json.Unmarshal([]byte(records[1]), &last))
	assert.Equal(t, "Timed out waiting for pods to be ready", last["msg"])
	assert.Equal(t, "ERROR", last["level"])
	assert.Equal(t, narrationSource, last["source"])

	require.Len(t, observer.lines, 3)
	assert.Equal(t, "", observer.lines[1].text)
	assert.Equal(t, slog.LevelError, observer.lines[2].level)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		give string
		want slog.Level
	}{
		{give: "debug", want: slog.LevelDebug},
		{give: "info", want: slog.LevelInfo},
		{give: "warn", want: slog.LevelWarn},
		{give: "error", want: slog.LevelError},
		{give: "verbose", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.give, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, ParseLevel(tt.give))
		})
	}
}
