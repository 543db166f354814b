// Package run implements the single-invocation commit flow: staged-diff
// check, history or profile preparation, message generation, presentation,
// and the confirm / edit / auto-commit / dry-run decision. Every external
// step is a blocking call; nothing here runs concurrently.
package run

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"aicommit/cli/internal/erruser"
	"aicommit/cli/internal/generate"
	"aicommit/cli/internal/git"
	"aicommit/cli/internal/guidelines"
	"aicommit/cli/internal/style"
	"aicommit/cli/internal/trace"
)

// lightHistoryDepth is the fallback history fetch when no cached profile
// exists and no fresh analysis was requested.
const lightHistoryDepth = 10

// presentRule separates the suggested message from surrounding output.
const presentRule = "============================================================"

// Git is the command-runner surface the orchestrator needs. *git.Repo
// implements it; tests substitute a fake.
type Git interface {
	StagedDiff(ctx context.Context) (string, error)
	Subjects(ctx context.Context, depth int) ([]string, error)
	Head(ctx context.Context) (string, error)
	Commit(ctx context.Context, message string, extraArgs []string, signOff bool) error
	CommitEdit(ctx context.Context, messageFile string, extraArgs []string, signOff bool) error
}

// Generator produces one suggested commit message. *generate.Generator
// implements it.
type Generator interface {
	Generate(ctx context.Context, in generate.Input) (string, error)
}

// ExitError reports that the delegated interactive commit ended with a git
// exit status the process should adopt as its own. Only the edit path
// produces it; plain commit failures stay ordinary errors so they are
// reported before the process exits.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("git commit exited with status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Options carries one invocation's inputs. In/Out/Err default to the
// process streams when nil.
type Options struct {
	Git       Git
	Generator Generator

	CachePath    string
	HistoryDepth int

	Analyze      bool // analyze history, persist the profile, and exit
	ForceAnalyze bool // re-analyze before generating
	AutoCommit   bool
	DryRun       bool
	SignOff      bool
	Context      string
	Guidelines   string
	ForwardArgs  []string

	// Resolve resolves a guidelines reference; defaults to guidelines.Resolve
	// with a bounded HTTP client. Tests substitute a fixed function.
	Resolve func(ctx context.Context, ref string) (string, error)

	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Tracer *trace.Tracer
}

// Run drives one invocation start to finish. A nil return means exit 0; the
// caller maps returned errors (including git exit statuses from the edit
// path) to the process exit code.
func Run(ctx context.Context, opts Options) error {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Resolve == nil {
		opts.Resolve = func(ctx context.Context, ref string) (string, error) {
			return guidelines.Resolve(ctx, ref, nil)
		}
	}

	if opts.Analyze {
		return runAnalyze(ctx, opts)
	}

	diff, err := opts.Git.StagedDiff(ctx)
	if err != nil {
		return erruser.New("Could not read the staged changes.", err)
	}
	if strings.TrimSpace(diff) == "" {
		fmt.Fprintln(opts.Out, "No staged changes. Stage files with 'git add' and run again.")
		return nil
	}
	opts.Tracer.Dump("Staged diff", diff)

	// Explicit guidelines are resolved before generation; failure here is
	// fatal because the user asked for them.
	var explicitGuidelines string
	if opts.Guidelines != "" {
		explicitGuidelines, err = opts.Resolve(ctx, opts.Guidelines)
		if err != nil {
			return err
		}
	}

	profile, subjects := prepareHistory(ctx, opts)

	if explicitGuidelines != "" {
		profile = mergeGuidelines(ctx, opts, profile, explicitGuidelines)
	}

	in := generate.Input{
		Diff:     diff,
		Subjects: subjects,
		Profile:  profile,
		Context:  opts.Context,
	}
	// The explicit value wins over whatever the cached profile carries.
	if explicitGuidelines != "" {
		in.Guidelines = explicitGuidelines
	} else if profile != nil {
		in.Guidelines = profile.Guidelines
	}

	fmt.Fprintln(opts.Err, "Generating a commit message...")
	message, err := opts.Generator.Generate(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintln(opts.Out, presentRule)
	fmt.Fprintln(opts.Out, "Suggested commit message")
	fmt.Fprintln(opts.Out, presentRule)
	fmt.Fprintln(opts.Out, message)
	fmt.Fprintln(opts.Out, presentRule)

	inject := !hasMessageFlag(opts.ForwardArgs)
	if !inject {
		fmt.Fprintln(opts.Err, "Forwarded arguments specify a commit message; the suggestion will not be used.")
	}

	if opts.DryRun {
		fmt.Fprintln(opts.Out, "Dry run; no commit made.")
		return nil
	}

	if opts.AutoCommit {
		return commit(ctx, opts, message, inject)
	}

	switch askDecision(opts) {
	case "y":
		return commit(ctx, opts, message, inject)
	case "e":
		return commitEdit(ctx, opts, message, inject)
	default:
		fmt.Fprintln(opts.Out, "Commit aborted. Changes are still staged; to unstage, run: git reset")
		return nil
	}
}

// runAnalyze performs the standalone analyze flow: scan history, persist the
// profile, print a summary. A cache-write failure is a warning, not a
// failure; the summary still reflects the in-memory profile.
func runAnalyze(ctx context.Context, opts Options) error {
	profile := analyzeHistory(ctx, opts)
	if err := style.Save(opts.CachePath, profile); err != nil {
		fmt.Fprintf(opts.Err, "Warning: %v\n", err)
	}
	fmt.Fprintf(opts.Out, "Analyzed %d commits.\n", profile.CommitCountScanned)
	if s := profile.Summary(); s != "" {
		fmt.Fprintln(opts.Out, s)
	}
	return nil
}

// analyzeHistory fetches up to HistoryDepth subjects and builds a fresh
// profile. A history-fetch failure (e.g. a repository with no commits)
// degrades to an empty scan rather than aborting.
func analyzeHistory(ctx context.Context, opts Options) *style.Profile {
	subjects, err := opts.Git.Subjects(ctx, opts.HistoryDepth)
	if err != nil {
		fmt.Fprintln(opts.Err, "Could not read commit history; analyzing an empty history.")
		subjects = nil
	}
	opts.Tracer.Printf("analyze: scanned %d subjects\n", len(subjects))
	return style.Analyze(subjects)
}

// prepareHistory chooses the style source in precedence order: a requested
// fresh analysis, a valid cached profile, then a light fixed-depth history
// fetch. The light fetch degrades to no history on failure.
func prepareHistory(ctx context.Context, opts Options) (*style.Profile, []string) {
	if opts.ForceAnalyze {
		profile := analyzeHistory(ctx, opts)
		if err := style.Save(opts.CachePath, profile); err != nil {
			fmt.Fprintf(opts.Err, "Warning: %v\n", err)
		}
		return profile, nil
	}
	if profile, _ := style.Load(opts.CachePath); profile != nil {
		opts.Tracer.Printf("history: using cached profile (%d commits)\n", profile.CommitCountScanned)
		return profile, nil
	}
	subjects, err := opts.Git.Subjects(ctx, lightHistoryDepth)
	if err != nil {
		opts.Tracer.Printf("history: fetch failed, assuming a new repository\n")
		return nil, nil
	}
	return nil, subjects
}

// mergeGuidelines caches resolved guidelines on the profile, creating one via
// a bounded analysis when none exists. Persistence failures are warnings; the
// in-memory profile still carries the guidelines for this run.
func mergeGuidelines(ctx context.Context, opts Options, profile *style.Profile, text string) *style.Profile {
	if profile == nil {
		profile = analyzeHistory(ctx, opts)
	}
	profile.SetGuidelines(text)
	if err := style.Save(opts.CachePath, profile); err != nil {
		fmt.Fprintf(opts.Err, "Warning: %v\n", err)
	}
	return profile
}

// askDecision prompts for y/n/e and returns the normalized answer. EOF or a
// read failure counts as a rejection.
func askDecision(opts Options) string {
	fmt.Fprint(opts.Out, "\nCommit with this message? [y/n/e]: ")
	line, err := bufio.NewReader(opts.In).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(opts.Err, "No answer; not committing.")
		return "n"
	}
	return strings.ToLower(strings.TrimSpace(line))
}

func commit(ctx context.Context, opts Options, message string, inject bool) error {
	if !inject {
		message = ""
	}
	if err := opts.Git.Commit(ctx, message, opts.ForwardArgs, opts.SignOff); err != nil {
		return erruser.New("Commit failed.", err)
	}
	fmt.Fprintln(opts.Out, "Commit successful.")
	if head, err := opts.Git.Head(ctx); err == nil {
		fmt.Fprintln(opts.Out, head)
	}
	return nil
}

// commitEdit hands the message to git's own editor flow via a message file,
// never via piped stdin, so the edit session keeps the terminal. A failed
// edit session already reported itself there, so its git exit status comes
// back as an ExitError for the caller to adopt.
func commitEdit(ctx context.Context, opts Options, message string, inject bool) error {
	var messageFile string
	if inject {
		f, err := os.CreateTemp("", "aicommit-*.txt")
		if err != nil {
			return erruser.New("Could not create the message file for editing.", err)
		}
		messageFile = f.Name()
		defer func() { _ = os.Remove(messageFile) }()
		if _, err := f.WriteString(message); err != nil {
			_ = f.Close()
			return erruser.New("Could not write the message file for editing.", err)
		}
		if err := f.Close(); err != nil {
			return erruser.New("Could not write the message file for editing.", err)
		}
	}
	if err := opts.Git.CommitEdit(ctx, messageFile, opts.ForwardArgs, opts.SignOff); err != nil {
		var execErr *git.ExecError
		if errors.As(err, &execErr) {
			return &ExitError{Code: execErr.ExitCode, Err: err}
		}
		return err
	}
	return nil
}

// hasMessageFlag reports whether forwarded git arguments already specify a
// commit message (-m/--message or -F/--file, including = forms and short
// clusters like -am). When true, the generated message must not be injected.
func hasMessageFlag(args []string) bool {
	for _, a := range args {
		switch {
		case a == "--message" || a == "--file":
			return true
		case strings.HasPrefix(a, "--message=") || strings.HasPrefix(a, "--file="):
			return true
		case len(a) > 1 && a[0] == '-' && a[1] != '-':
			if strings.ContainsAny(a[1:], "mF") {
				return true
			}
		}
	}
	return false
}
