// Package report writes timer readings as a plain-text table.
//
// Numbers are formatted for a language with golang.org/x/text/message, so
// a German report prints "16,50" where an English one prints "16.50".
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/gputimer"
)

// Option configures Write.
type Option func(*config)

type config struct {
	tag         language.Tag
	diagnostics bool
	title       string
}

// WithLanguage sets the language used to format numbers. The default is
// language.English.
func WithLanguage(tag language.Tag) Option {
	return func(c *config) {
		c.tag = tag
	}
}

// WithDiagnostics adds the discarded window and failed readback counters.
func WithDiagnostics() Option {
	return func(c *config) {
		c.diagnostics = true
	}
}

// WithTitle prints title above the table.
func WithTitle(title string) Option {
	return func(c *config) {
		c.title = title
	}
}

// Write writes one row per reading to w.
func Write(w io.Writer, readings []gputimer.Reading, opts ...Option) error {
	c := config{tag: language.English}
	for _, opt := range opts {
		opt(&c)
	}
	p := message.NewPrinter(c.tag)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	if c.title != "" {
		if _, err := fmt.Fprintln(w, c.title); err != nil {
			return err
		}
	}

	header := "timer\tcpu ms\tgpu ms\t"
	if c.diagnostics {
		header += "discarded\tfailed\t"
	}
	if _, err := fmt.Fprintln(tw, header); err != nil {
		return err
	}

	for _, r := range readings {
		row := r.Name + "\t" + cell(p, r.CPU, r.HasCPU) + "\t" + cell(p, r.GPU, r.HasGPU) + "\t"
		if c.diagnostics {
			row += p.Sprintf("%d\t%d\t", r.GPUDiscarded, r.GPUFailed)
		}
		if _, err := fmt.Fprintln(tw, row); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func cell(p *message.Printer, v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return p.Sprintf("%.2f", v)
}
