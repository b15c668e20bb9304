package highlights

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportMeta is the YAML frontmatter of an exported feed.
type ExportMeta struct {
	Title      string   `yaml:"title"`
	ExportedAt string   `yaml:"exported_at"`
	Count      int      `yaml:"count"`
	Books      []string `yaml:"books,omitempty"`
}

// ExportMarkdown renders a grouped feed as Markdown with YAML frontmatter:
// one `##` section per day, one `###` section per book (unless the feed
// was grouped for a single selected book) and a quote per highlight.
func ExportMarkdown(feed Feed, title string, now time.Time) ([]byte, error) {
	meta := ExportMeta{
		Title:      title,
		ExportedAt: now.UTC().Format(time.RFC3339),
	}
	seen := make(map[string]struct{})
	for _, n := range feed.Items {
		if n.Type == NodeHighlight {
			meta.Count++
			book := n.Data.FileName
			if book == "" {
				book = Untitled
			}
			if _, ok := seen[book]; !ok {
				seen[book] = struct{}{}
				meta.Books = append(meta.Books, book)
			}
		}
	}

	fm, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("highlights: export frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n")
	if title != "" {
		fmt.Fprintf(&buf, "\n# %s\n", title)
	}

	for _, n := range feed.Items {
		switch n.Type {
		case NodeDateHeader:
			fmt.Fprintf(&buf, "\n## %s\n", n.Date)
		case NodeFileHeader:
			fmt.Fprintf(&buf, "\n### %s\n", n.FileName)
		case NodeHighlight:
			writeHighlight(&buf, *n.Data)
		}
	}
	return buf.Bytes(), nil
}

func writeHighlight(buf *bytes.Buffer, h Processed) {
	buf.WriteString("\n")
	for _, line := range strings.Split(strings.TrimSpace(h.HighlightedText), "\n") {
		buf.WriteString("> " + line + "\n")
	}
	fmt.Fprintf(buf, ">\n> p. %d\n", h.Page)
	if a := h.annotation(); a != "" {
		buf.WriteString("\n" + a + "\n")
	}
}
