// Package generate assembles the commit-message prompt from the staged diff,
// history or style profile, guidelines, and free-form context, and obtains a
// single completion from the generative-language API.
package generate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"aicommit/cli/internal/erruser"
	"aicommit/cli/internal/gemini"
	"aicommit/cli/internal/style"
	"aicommit/cli/internal/trace"
)

// maxDiffChars caps the diff sent to the model; larger diffs are truncated
// with a marker so the prompt stays inside the model's context.
const maxDiffChars = 64 * 1024

// DefaultLineWidth is the column budget for every line of the generated
// message, subject included. Earlier revisions of this tool used 50 for the
// subject; it is configuration now, not a constant to argue about.
const DefaultLineWidth = 100

// Input carries everything the prompt is built from. Profile, when set, is
// preferred over raw Subjects; Guidelines and Context are optional blocks.
type Input struct {
	Diff       string
	Subjects   []string
	Profile    *style.Profile
	Guidelines string
	Context    string
}

// Generator produces one suggested commit message per call. Credential is
// resolved at generation time so that analyze-only and empty-diff runs never
// touch it; tests substitute a fixed function.
type Generator struct {
	Model      string
	BaseURL    string
	LineWidth  int
	HTTPClient *http.Client
	Credential func() (string, error)
	Tracer     *trace.Tracer
}

// Generate builds the prompt, calls the API once, and returns the trimmed
// suggestion. There is no retry; a failed call means re-invoking the tool.
func (g *Generator) Generate(ctx context.Context, in Input) (string, error) {
	if g.Credential == nil {
		return "", erruser.New("No API credential source configured.", nil)
	}
	key, err := g.Credential()
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", erruser.New("An API key is required to generate a commit message.", nil)
	}

	width := g.LineWidth
	if width <= 0 {
		width = DefaultLineWidth
	}
	prompt := BuildPrompt(in, width)
	g.Tracer.Dump("Prompt", prompt)

	client := gemini.NewClient(g.BaseURL, key, g.HTTPClient)
	out, err := client.Generate(ctx, g.Model, prompt, nil)
	if err != nil {
		return "", erruser.New("Could not generate a commit message.", err)
	}
	g.Tracer.Dump("Suggestion", out)
	return strings.TrimSpace(out), nil
}

// BuildPrompt renders the structured prompt. Block order: style/history,
// guidelines, author context, diff, fixed instructions.
func BuildPrompt(in Input, lineWidth int) string {
	var b strings.Builder
	b.WriteString("You are an expert programmer writing a git commit message for the staged changes below.\n\n")

	switch {
	case in.Profile != nil:
		b.WriteString("Commit style profile (from this repository's history):\n")
		b.WriteString(in.Profile.Summary())
		b.WriteString("\n\n")
	case len(in.Subjects) > 0:
		b.WriteString("Recent commit subjects (for style reference):\n")
		for _, s := range in.Subjects {
			b.WriteString("  " + s + "\n")
		}
		b.WriteString("\n")
	default:
		b.WriteString("No previous commits found. This is likely the initial commit.\n\n")
	}

	if in.Guidelines != "" {
		b.WriteString("Project guidelines:\n")
		b.WriteString(in.Guidelines)
		b.WriteString("\n\n")
	}
	if in.Context != "" {
		b.WriteString("Additional context from the author:\n")
		b.WriteString(in.Context)
		b.WriteString("\n\n")
	}

	b.WriteString("Staged changes (git diff):\n---\n")
	b.WriteString(truncateDiff(in.Diff))
	b.WriteString("\n---\n\n")

	fmt.Fprintf(&b, `Instructions:
1. Write a commit message that accurately summarizes the changes.
2. Use a conventional-commit prefix (e.g. feat:, fix:, chore:) when the history suggests one.
3. Wrap every line, including the subject, at %d characters.
4. Separate the subject from the body with a blank line; omit the body when the subject says it all.
5. Output only the raw commit message, with no commentary, markdown, or surrounding quotes.
`, lineWidth)
	return b.String()
}

func truncateDiff(diff string) string {
	if len(diff) <= maxDiffChars {
		return diff
	}
	return diff[:maxDiffChars] + "\n\n[truncated]"
}
