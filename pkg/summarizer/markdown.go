package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate labels.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = t
	}
}

// WithVersion adds the program version to the footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a formatter. Labels are untranslated by default.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Capture Summary"))

	fmt.Fprintf(&b, "## %s\n\n", t("Session"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	row(&b, t("Source"), t(orNA(s.Session.Source)))
	if s.Session.Input != "" {
		row(&b, t("Input"), s.Session.Input)
	}
	if s.Session.Record != "" {
		row(&b, t("Recorded To"), s.Session.Record)
	}
	if s.Session.Device != "" {
		row(&b, t("Device"), s.Session.Device)
	}
	row(&b, t("Display"), fmt.Sprintf("%dx%d", s.Session.Width, s.Session.Height))
	if s.Session.Layout != "" {
		row(&b, t("Header Layout"), s.Session.Layout)
	}
	row(&b, t("Duration"), formatDuration(s.Session.Duration))
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Frames"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	row(&b, t("Frames Emitted"), fmt.Sprint(s.Frames.Emitted))
	row(&b, t("Duplicates"), fmt.Sprint(s.Frames.Duplicates))
	row(&b, t("Row Discontinuities"), fmt.Sprint(s.Frames.RowDiscontinuities))
	row(&b, t("Frame Discontinuities"), fmt.Sprint(s.Frames.FrameDiscontinuities))
	if fps := frameRate(s.Frames.Emitted, s.Session.Duration); fps > 0 {
		row(&b, t("Average Frame Rate"), fmt.Sprintf("%.2f fps", fps))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Stream"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", t("Item"), t("Value"))
	row(&b, t("Scanlines"), fmt.Sprint(s.Stream.Scanlines))
	row(&b, t("Artifact Rows"), fmt.Sprint(s.Stream.ArtifactRows))
	row(&b, t("Lost Sync"), fmt.Sprint(s.Stream.LostSync))
	row(&b, t("Timeouts"), fmt.Sprint(s.Stream.Timeouts))
	row(&b, t("Overflows"), fmt.Sprint(s.Stream.Overflows))
	b.WriteString("\n")

	if len(s.Sinks) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", t("Sinks"))
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n|---|---|---|---|\n",
			t("Sink"), t("Delivered"), t("Failed"), t("Dropped"))
		for _, sink := range s.Sinks {
			fmt.Fprintf(&b, "| %s | %d | %d | %d |\n", sink.Name, sink.Delivered, sink.Failed, sink.Dropped)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	footer := fmt.Sprintf("%s %s", t("Generated at"), s.GeneratedAt.Format(time.RFC3339))
	if f.version != "" {
		footer += fmt.Sprintf(" (lcdtap %s)", f.version)
	}
	b.WriteString(footer + "\n")

	return b.String()
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", label, value)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func frameRate(frames int, d time.Duration) float64 {
	if frames == 0 || d <= 0 {
		return 0
	}
	return float64(frames) / d.Seconds()
}

// formatDuration renders d with millisecond precision.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "N/A"
	}
	return d.Round(time.Millisecond).String()
}
