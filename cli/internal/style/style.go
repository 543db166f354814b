// Package style builds and persists a compact profile of a repository's
// commit-subject style: detected conventional-commit prefixes, average
// subject length, example subjects, and optional project guidelines. The
// profile amortizes history analysis across invocations; it is recomputed
// only on request, never automatically.
package style

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"aicommit/cli/internal/erruser"
)

const (
	// maxExamples caps the subjects kept verbatim in the profile.
	maxExamples = 25
	// maxTopPrefixes caps the ranked prefix list.
	maxTopPrefixes = 10
)

// prefixPattern matches a conventional-commit style leading token before a
// colon, e.g. "feat:" or "build_tool:". Scoped forms like "feat(api):" are
// intentionally not counted as a prefix.
var prefixPattern = regexp.MustCompile(`^([A-Za-z0-9_-]+):`)

// PrefixCount is one entry of the ranked prefix list.
type PrefixCount struct {
	Prefix string `json:"prefix"`
	Count  int    `json:"count"`
}

// Profile is the persisted style summary. It is the tool's only mutable state
// on disk, stored as a single JSON document in the repository's metadata
// directory.
type Profile struct {
	CreatedAt          string         `json:"created_at"`
	CommitCountScanned int            `json:"commit_count_scanned"`
	HistoryExamples    []string       `json:"history_examples,omitempty"`
	PrefixCounts       map[string]int `json:"prefix_counts,omitempty"`
	TopPrefixes        []PrefixCount  `json:"top_prefixes,omitempty"`
	AvgSubjectLength   float64        `json:"avg_subject_length"`
	Guidelines         string         `json:"guidelines,omitempty"`
}

// Analyze computes a fresh profile from commit subjects (most recent first).
// A nil or empty slice yields a valid profile with zero counts. The new
// profile carries no guidelines; merging cached guidelines is the caller's
// decision.
func Analyze(subjects []string) *Profile {
	p := &Profile{
		CreatedAt:          time.Now().UTC().Format(time.RFC3339),
		CommitCountScanned: len(subjects),
	}
	if len(subjects) == 0 {
		return p
	}

	counts := make(map[string]int)
	var totalLen int
	for _, s := range subjects {
		totalLen += len(s)
		if m := prefixPattern.FindStringSubmatch(s); m != nil {
			counts[m[1]]++
		}
	}
	p.AvgSubjectLength = float64(totalLen) / float64(len(subjects))
	if len(counts) > 0 {
		p.PrefixCounts = counts
	}

	ranked := make([]PrefixCount, 0, len(counts))
	for prefix, count := range counts {
		ranked = append(ranked, PrefixCount{Prefix: prefix, Count: count})
	}
	// Descending by count; ties by prefix name so the ranking is stable.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Prefix < ranked[j].Prefix
	})
	if len(ranked) > maxTopPrefixes {
		ranked = ranked[:maxTopPrefixes]
	}
	if len(ranked) > 0 {
		p.TopPrefixes = ranked
	}

	n := len(subjects)
	if n > maxExamples {
		n = maxExamples
	}
	p.HistoryExamples = append([]string(nil), subjects[:n]...)
	return p
}

// SetGuidelines replaces only the guidelines text, leaving every analyzed
// field untouched.
func (p *Profile) SetGuidelines(text string) {
	p.Guidelines = text
}

// Summary renders the profile as a short plain-text block for the generation
// prompt: ranked prefixes, average subject length, and example subjects.
func (p *Profile) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Commits scanned: %d\n", p.CommitCountScanned)
	if len(p.TopPrefixes) > 0 {
		parts := make([]string, 0, len(p.TopPrefixes))
		for _, pc := range p.TopPrefixes {
			parts = append(parts, fmt.Sprintf("%s (%d)", pc.Prefix, pc.Count))
		}
		fmt.Fprintf(&b, "Detected prefixes: %s\n", strings.Join(parts, ", "))
	}
	if p.AvgSubjectLength > 0 {
		fmt.Fprintf(&b, "Average subject length: %.0f characters\n", p.AvgSubjectLength)
	}
	if len(p.HistoryExamples) > 0 {
		b.WriteString("Example subjects:\n")
		for _, s := range p.HistoryExamples {
			b.WriteString("  " + s + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Load reads the profile at path. A missing or malformed file returns
// (nil, nil): an absent profile is not a failure, the caller falls back to a
// plain history fetch.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil
	}
	return &p, nil
}

// Save writes the profile to path as a whole-file atomic replace (temp file,
// sync, rename), creating parent directories as needed.
func Save(path string, p *Profile) error {
	if p == nil {
		return erruser.New("Cannot save an empty style profile.", nil)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return erruser.New("Could not create the style cache directory.", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return erruser.New("Could not encode the style profile.", err)
	}
	f, err := os.CreateTemp(dir, "style.*.tmp")
	if err != nil {
		return erruser.New("Could not write the style cache.", err)
	}
	tmpPath := f.Name()
	defer func() { _ = os.Remove(tmpPath) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return erruser.New("Could not write the style cache.", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return erruser.New("Could not write the style cache.", err)
	}
	if err := f.Close(); err != nil {
		return erruser.New("Could not write the style cache.", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return erruser.New("Could not write the style cache.", err)
	}
	return nil
}
