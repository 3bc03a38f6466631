package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/cli/go-gh/v2/pkg/markdown"
)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

// TerminalRenderer writes blocks to a terminal, one after another, as
// markdown rendered with glamour or as plain text when the output is not a
// styled terminal.
type TerminalRenderer struct {
	out       io.Writer
	markdown  *glamour.TermRenderer
	plainText bool
}

// NewTerminalRenderer returns a renderer writing to out.
func NewTerminalRenderer(out io.Writer, usePlainText bool) *TerminalRenderer {
	var md *glamour.TermRenderer
	if !usePlainText {
		md, _ = glamour.NewTermRenderer(
			markdown.WithWrap(120),
			glamour.WithAutoStyle(),
		)
	}

	return &TerminalRenderer{
		out:       out,
		markdown:  md,
		plainText: usePlainText || md == nil,
	}
}

// WriteBlock renders one block. Output is strictly appended; earlier blocks
// are never rewritten.
func (t *TerminalRenderer) WriteBlock(block Block) error {
	switch b := block.(type) {
	case ErrorBlock:
		return t.writeError(b)
	case ModuleBlock:
		return t.writeModule(b)
	default:
		return fmt.Errorf("unknown block type %T", block)
	}
}

func (t *TerminalRenderer) writeError(b ErrorBlock) error {
	msg := "Error: " + b.Message
	if !t.plainText {
		msg = errorStyle.Render(msg)
	}
	_, err := fmt.Fprintln(t.out, msg)
	return err
}

func (t *TerminalRenderer) writeModule(b ModuleBlock) error {
	content := moduleMarkdown(b)

	if t.plainText {
		_, err := fmt.Fprintln(t.out, content)
		return err
	}

	mdContent, err := t.markdown.Render(content)
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = fmt.Fprintln(t.out, strings.TrimSpace(mdContent))
	return err
}

// moduleMarkdown builds the markdown for one module block: a heading per
// module, a subheading per lesson, the embed link for the lesson's primary
// video, and an ordered list of the remaining videos.
func moduleMarkdown(b ModuleBlock) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n", b.Title)

	for _, lesson := range b.Lessons {
		fmt.Fprintf(&sb, "\n### %s\n\n", lesson.Title)

		if lesson.NoVideos {
			sb.WriteString(placeholderText + "\n")
			continue
		}

		if lesson.EmbedID != "" {
			fmt.Fprintf(&sb, "▶ https://www.youtube.com/embed/%s\n", lesson.EmbedID)
		}
		if len(lesson.Links) > 0 {
			sb.WriteString("\nMore videos:\n\n")
			for i, link := range lesson.Links {
				fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, link.Title, link.URL)
			}
		}
	}

	return sb.String()
}

const placeholderText = "_No videos found for this lesson._"
