package analyzer

import (
	"fmt"
	"strings"

	"github.com/sailorworks/verigrant/internal/scraper"
)

// maxPostChars bounds each quoted post so the prompt stays small no
// matter what the source returns.
const maxPostChars = 280

// buildPrompt renders the bounded textual prompt for the scoring model:
// a profile summary plus up to maxPosts recent posts with engagement
// stats, followed by the required output contract.
func buildPrompt(profile *scraper.Profile, maxPosts int) string {
	var b strings.Builder

	b.WriteString("You are scoring a social media account on a D&D-style alignment chart.\n\n")
	b.WriteString("Profile:\n")
	fmt.Fprintf(&b, "- Handle: @%s\n", profile.Username)
	if profile.Name != "" {
		fmt.Fprintf(&b, "- Name: %s\n", profile.Name)
	}
	if profile.Bio != "" {
		fmt.Fprintf(&b, "- Bio: %s\n", truncate(profile.Bio, maxPostChars))
	}

	posts := profile.Posts
	if len(posts) > maxPosts {
		posts = posts[:maxPosts]
	}
	if len(posts) > 0 {
		b.WriteString("\nRecent posts (most recent first):\n")
		for i, post := range posts {
			fmt.Fprintf(&b, "%d. %q (%d likes, %d reposts)\n",
				i+1, truncate(post.Text, maxPostChars), post.Likes, post.Reposts)
		}
	}

	b.WriteString("\nScore the account on two axes:\n")
	b.WriteString("- lawfulChaotic: -100 (strictly lawful) to 100 (utterly chaotic)\n")
	b.WriteString("- goodEvil: -100 (saintly good) to 100 (cartoonishly evil)\n")
	b.WriteString("Respond with JSON: {\"explanation\": <one short sentence>, ")
	b.WriteString("\"lawfulChaotic\": <int>, \"goodEvil\": <int>}\n")

	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
