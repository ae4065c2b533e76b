package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"github.com/gogpu/gputimer"
)

var readings = []gputimer.Reading{
	{Name: "frame", CPU: 16.5, GPU: 4.25, HasCPU: true, HasGPU: true},
	{Name: "shadow", GPU: 1.5, HasGPU: true, GPUDiscarded: 2, GPUFailed: 1},
}

func TestWrite(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		want    []string
		notWant []string
	}{
		{
			name:    "english",
			want:    []string{"timer", "cpu ms", "gpu ms", "16.50", "4.25", "1.50"},
			notWant: []string{"discarded"},
		},
		{
			name:    "german",
			opts:    []Option{WithLanguage(language.German)},
			want:    []string{"16,50", "4,25", "1,50"},
			notWant: []string{"16.50"},
		},
		{
			name: "diagnostics",
			opts: []Option{WithDiagnostics(), WithTitle("gpu timings")},
			want: []string{"gpu timings", "discarded", "failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, readings, tt.opts...); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output contains %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestWriteRows(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, readings, WithDiagnostics()); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), buf.String())
	}

	shadow := strings.Fields(lines[2])
	want := []string{"shadow", "-", "1.50", "2", "1"}
	if len(shadow) != len(want) {
		t.Fatalf("shadow row = %v, want %v", shadow, want)
	}
	for i := range want {
		if shadow[i] != want[i] {
			t.Errorf("shadow[%d] = %q, want %q", i, shadow[i], want[i])
		}
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Errorf("empty report has %d lines, want header only", got)
	}
}

type failingWriter struct{}

var errWrite = errors.New("write failed")

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestWriteError(t *testing.T) {
	if err := Write(failingWriter{}, readings); !errors.Is(err, errWrite) {
		t.Errorf("Write() error = %v, want errWrite", err)
	}
}
