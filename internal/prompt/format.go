package prompt

import (
	"fmt"
	"strings"

	"github.com/koopa0/briefing/internal/chain"
)

// FormatDocuments renders documents as the block placed inside the task
// prompt. Each document is wrapped in a small XML envelope so the model can
// tell sources apart.
func FormatDocuments(docs []*chain.Document) string {
	formatted := make([]string, 0, len(docs))
	for _, d := range docs {
		formatted = append(formatted, fmt.Sprintf(
			"<Document>\n\t<Source>%s</Source>\n\t<Content>\n%s\n\t</Content>\n</Document>",
			d.Metadata.FileName, d.Content,
		))
	}
	return strings.Join(formatted, "\n\n")
}
