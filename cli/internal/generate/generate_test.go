package generate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aicommit/cli/internal/style"
)

func fixedCredential(key string) func() (string, error) {
	return func() (string, error) { return key, nil }
}

func TestBuildPrompt_withProfile(t *testing.T) {
	t.Parallel()
	p := style.Analyze([]string{"feat: one", "feat: two", "fix: three"})
	got := BuildPrompt(Input{Diff: "+added line", Profile: p}, 100)
	if !strings.Contains(got, "Commit style profile") {
		t.Errorf("prompt missing profile block:\n%s", got)
	}
	if !strings.Contains(got, "feat (2)") {
		t.Errorf("prompt missing prefix counts:\n%s", got)
	}
	if !strings.Contains(got, "+added line") {
		t.Errorf("prompt missing diff:\n%s", got)
	}
	if !strings.Contains(got, "at 100 characters") {
		t.Errorf("prompt missing line budget:\n%s", got)
	}
	if strings.Contains(got, "Project guidelines:") || strings.Contains(got, "Additional context") {
		t.Errorf("prompt has optional blocks without input:\n%s", got)
	}
}

func TestBuildPrompt_withRawHistory(t *testing.T) {
	t.Parallel()
	got := BuildPrompt(Input{Diff: "d", Subjects: []string{"feat: init"}}, 72)
	if !strings.Contains(got, "Recent commit subjects") {
		t.Errorf("prompt missing history block:\n%s", got)
	}
	if !strings.Contains(got, "  feat: init") {
		t.Errorf("prompt missing subject:\n%s", got)
	}
	if !strings.Contains(got, "at 72 characters") {
		t.Errorf("prompt missing configured budget:\n%s", got)
	}
}

func TestBuildPrompt_noHistoryPlaceholder(t *testing.T) {
	t.Parallel()
	got := BuildPrompt(Input{Diff: "d"}, 100)
	if !strings.Contains(got, "No previous commits found") {
		t.Errorf("prompt missing placeholder:\n%s", got)
	}
}

func TestBuildPrompt_optionalBlocks(t *testing.T) {
	t.Parallel()
	got := BuildPrompt(Input{
		Diff:       "d",
		Subjects:   []string{"x"},
		Guidelines: "Sign every commit.",
		Context:    "Part of the auth rework.",
	}, 100)
	if !strings.Contains(got, "Project guidelines:\nSign every commit.") {
		t.Errorf("prompt missing guidelines:\n%s", got)
	}
	if !strings.Contains(got, "Additional context from the author:\nPart of the auth rework.") {
		t.Errorf("prompt missing context:\n%s", got)
	}
}

func TestBuildPrompt_truncatesHugeDiff(t *testing.T) {
	t.Parallel()
	huge := strings.Repeat("x", maxDiffChars+100)
	got := BuildPrompt(Input{Diff: huge}, 100)
	if !strings.Contains(got, "[truncated]") {
		t.Error("huge diff not truncated")
	}
	if len(got) > maxDiffChars+2048 {
		t.Errorf("prompt length = %d, truncation ineffective", len(got))
	}
}

func TestGenerate_endToEnd(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"feat: add x\n"}]}}]}`))
	}))
	defer srv.Close()
	g := &Generator{
		Model:      "gemini-1.5-flash",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Credential: fixedCredential("k"),
	}
	out, err := g.Generate(context.Background(), Input{Diff: "+print('hi')"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "feat: add x" {
		t.Errorf("Generate = %q", out)
	}
}

func TestGenerate_emptyCredentialIsPrecondition(t *testing.T) {
	t.Parallel()
	g := &Generator{Model: "m", Credential: fixedCredential("")}
	if _, err := g.Generate(context.Background(), Input{Diff: "d"}); err == nil {
		t.Fatal("Generate with empty key: expected error")
	}
}

func TestGenerate_credentialErrorPropagates(t *testing.T) {
	t.Parallel()
	want := errors.New("prompt cancelled")
	g := &Generator{Model: "m", Credential: func() (string, error) { return "", want }}
	_, err := g.Generate(context.Background(), Input{Diff: "d"})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want credential error", err)
	}
}
