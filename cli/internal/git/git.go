// Package git runs the git binary for repository inspection and committing.
// All invocations pass explicit argument lists; no command line is ever built
// from untrusted text. The commit message travels over stdin (-F -) or via a
// message file, never interpolated into arguments.
package git

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"aicommit/cli/internal/erruser"
)

// ExecError reports a git invocation that exited non-zero, with the trimmed
// stderr for diagnostics.
type ExecError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("git %s: exit %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Repo is a handle to a git repository rooted at a working-tree directory.
type Repo struct {
	root string
}

// Open locates the repository containing dir via "git rev-parse --show-toplevel".
// Returns an erruser error when dir is not inside a git repository.
func Open(dir string) (*Repo, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	cmd.Env = minimalEnv()
	out, err := cmd.Output()
	if err != nil {
		return nil, erruser.New("This directory is not inside a Git repository.", err)
	}
	root, err := filepath.Abs(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, erruser.New("Could not resolve the repository root.", err)
	}
	return &Repo{root: root}, nil
}

// Root returns the absolute path of the repository's working-tree root.
func (r *Repo) Root() string { return r.root }

// Dir returns the absolute path of the repository's metadata directory
// (normally <root>/.git, but different for worktrees and submodules).
func (r *Repo) Dir(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "--git-dir")
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(out) {
		return out, nil
	}
	return filepath.Join(r.root, out), nil
}

// StagedDiff returns the staged changes as a unified diff, trimmed of
// surrounding whitespace. An empty string means there is nothing staged.
func (r *Repo) StagedDiff(ctx context.Context) (string, error) {
	return r.run(ctx, "diff", "--staged", "--no-color", "--no-ext-diff")
}

// Subjects returns up to depth commit subjects, most recent first. A
// repository with no commits yet makes git log exit non-zero; callers decide
// whether that is fatal or a fallback case.
func (r *Repo) Subjects(ctx context.Context, depth int) ([]string, error) {
	if depth <= 0 {
		return nil, nil
	}
	out, err := r.run(ctx, "log", "-n", fmt.Sprintf("%d", depth), "--pretty=format:%s")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Head returns the one-line description of the commit at HEAD.
func (r *Repo) Head(ctx context.Context) (string, error) {
	return r.run(ctx, "log", "-n", "1", "--pretty=oneline")
}

// Commit runs git commit with the given forwarded arguments. When message is
// non-empty it is supplied on stdin via -F -; when empty, the forwarded
// arguments are expected to carry their own -m/-F flag and are passed through
// unchanged. signOff appends --signoff. Commit runs with the full user
// environment so identity and hooks behave as in a plain git commit.
func (r *Repo) Commit(ctx context.Context, message string, extraArgs []string, signOff bool) error {
	args := []string{"commit"}
	if signOff {
		args = append(args, "--signoff")
	}
	var stdin io.Reader
	if message != "" {
		args = append(args, "-F", "-")
		stdin = strings.NewReader(message)
	}
	args = append(args, extraArgs...)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Stdin = stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		diag := stderr.String()
		if strings.TrimSpace(diag) == "" {
			// Hooks sometimes report only on stdout.
			diag = stdout.String()
		}
		return wrapExec(args, err, diag)
	}
	return nil
}

// CommitEdit runs git commit -e -F messageFile with the terminal attached, so
// git opens its own editor on the generated message and the user keeps full
// interactive control. An empty messageFile omits -F; the forwarded arguments
// then seed the editor (e.g. a forwarded -m). The editor's exit status is
// reported via ExecError.
func (r *Repo) CommitEdit(ctx context.Context, messageFile string, extraArgs []string, signOff bool) error {
	args := []string{"commit"}
	if signOff {
		args = append(args, "--signoff")
	}
	args = append(args, "-e")
	if messageFile != "" {
		args = append(args, "-F", messageFile)
	}
	args = append(args, extraArgs...)
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return wrapExec(args, err, "")
	}
	return nil
}

// run executes git with args in the repository root and returns stdout trimmed
// of surrounding whitespace. Non-zero exit returns an ExecError with stderr.
func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Env = minimalEnv()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", wrapExec(args, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func wrapExec(args []string, err error, stderr string) error {
	code := -1
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	}
	return &ExecError{
		Args:     args,
		ExitCode: code,
		Stderr:   strings.TrimSpace(stderr),
		Err:      err,
	}
}

// minimalEnv is used for read-only inspection commands: enough environment
// for git to run, with terminal prompts disabled so nothing blocks on
// credentials.
func minimalEnv() []string {
	return []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"GIT_TERMINAL_PROMPT=0",
	}
}
