package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportMarkdown renders a challenge and its submissions as a markdown
// document, one section per user.
func ExportMarkdown(ch *Challenge, subs []Submission) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s\n\n", ch.Title))
	b.WriteString(fmt.Sprintf("- **Challenge:** %s\n", ch.ID))
	if ch.ImageURL != "" {
		b.WriteString(fmt.Sprintf("- **Image:** %s\n", ch.ImageURL))
	}
	b.WriteString(fmt.Sprintf("- **Submissions:** %d\n", len(subs)))
	b.WriteString("\n---\n\n")

	for _, s := range subs {
		b.WriteString(fmt.Sprintf("## %s\n\n", s.Username))
		b.WriteString(fmt.Sprintf("Submitted %s", s.SubmittedAt.Format("2006-01-02 15:04:05")))
		if !s.UpdatedAt.Equal(s.SubmittedAt) {
			b.WriteString(fmt.Sprintf(", updated %s", s.UpdatedAt.Format("2006-01-02 15:04:05")))
		}
		b.WriteString("\n\n```js\n")
		b.WriteString(strings.TrimRight(s.Code, "\n"))
		b.WriteString("\n```\n\n")
	}

	return b.String()
}

// ExportJSON renders a challenge and its submissions as formatted JSON.
func ExportJSON(ch *Challenge, subs []Submission) ([]byte, error) {
	if subs == nil {
		subs = []Submission{}
	}
	export := struct {
		Challenge   *Challenge   `json:"challenge"`
		Submissions []Submission `json:"submissions"`
	}{
		Challenge:   ch,
		Submissions: subs,
	}
	return json.MarshalIndent(export, "", "  ")
}
