package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "git", "init")
	run(t, dir, "git", "config", "user.email", "test@aicommit.local")
	run(t, dir, "git", "config", "user.name", "Test")
	writeFile(t, dir, "f1.txt", "a\n")
	run(t, dir, "git", "add", "f1.txt")
	run(t, dir, "git", "commit", "-m", "feat: first")
	writeFile(t, dir, "f2.txt", "b\n")
	run(t, dir, "git", "add", "f2.txt")
	run(t, dir, "git", "commit", "-m", "fix: second")
	return dir
}

func run(t *testing.T, dir, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_fromSubdir(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	subdir := filepath.Join(dir, "sub")
	if err := os.MkdirAll(subdir, 0755); err != nil {
		t.Fatal(err)
	}
	repo, err := Open(subdir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		t.Fatal(err)
	}
	// macOS t.TempDir may sit behind a symlink; compare resolved paths.
	wantRoot, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		t.Fatal(err)
	}
	gotRoot, err := filepath.EvalSymlinks(repo.Root())
	if err != nil {
		t.Fatal(err)
	}
	if gotRoot != wantRoot {
		t.Errorf("Root() = %q, want %q", gotRoot, wantRoot)
	}
}

func TestOpen_notARepo(t *testing.T) {
	t.Parallel()
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("Open(non-repo): expected error")
	}
}

func TestStagedDiff_emptyWhenNothingStaged(t *testing.T) {
	t.Parallel()
	repo := mustOpen(t, initRepo(t))
	out, err := repo.StagedDiff(context.Background())
	if err != nil {
		t.Fatalf("StagedDiff: %v", err)
	}
	if out != "" {
		t.Errorf("StagedDiff = %q, want empty", out)
	}
}

func TestStagedDiff_showsStagedContent(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	writeFile(t, dir, "f3.txt", "hello\n")
	run(t, dir, "git", "add", "f3.txt")
	repo := mustOpen(t, dir)
	out, err := repo.StagedDiff(context.Background())
	if err != nil {
		t.Fatalf("StagedDiff: %v", err)
	}
	if !strings.Contains(out, "+hello") {
		t.Errorf("StagedDiff missing added line: %q", out)
	}
}

func TestSubjects_mostRecentFirstAndBounded(t *testing.T) {
	t.Parallel()
	repo := mustOpen(t, initRepo(t))
	ctx := context.Background()
	subjects, err := repo.Subjects(ctx, 10)
	if err != nil {
		t.Fatalf("Subjects: %v", err)
	}
	want := []string{"fix: second", "feat: first"}
	if len(subjects) != 2 || subjects[0] != want[0] || subjects[1] != want[1] {
		t.Errorf("Subjects = %v, want %v", subjects, want)
	}
	bounded, err := repo.Subjects(ctx, 1)
	if err != nil {
		t.Fatalf("Subjects(1): %v", err)
	}
	if len(bounded) != 1 || bounded[0] != "fix: second" {
		t.Errorf("Subjects(1) = %v, want [fix: second]", bounded)
	}
}

func TestSubjects_zeroDepth(t *testing.T) {
	t.Parallel()
	repo := mustOpen(t, initRepo(t))
	subjects, err := repo.Subjects(context.Background(), 0)
	if err != nil || subjects != nil {
		t.Errorf("Subjects(0) = %v, %v; want nil, nil", subjects, err)
	}
}

func TestSubjects_emptyRepo_returnsExecError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	run(t, dir, "git", "init")
	repo := mustOpen(t, dir)
	_, err := repo.Subjects(context.Background(), 10)
	if err == nil {
		t.Fatal("Subjects on empty repo: expected error")
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type = %T, want *ExecError", err)
	}
	if execErr.ExitCode <= 0 {
		t.Errorf("ExitCode = %d, want > 0", execErr.ExitCode)
	}
}

func TestCommit_viaStdinMessage(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	writeFile(t, dir, "f3.txt", "hi\n")
	run(t, dir, "git", "add", "f3.txt")
	repo := mustOpen(t, dir)
	ctx := context.Background()
	msg := "feat: add f3\n\nBody with \"quotes\" and $(dollar) text."
	if err := repo.Commit(ctx, msg, nil, false); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	subjects, err := repo.Subjects(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if subjects[0] != "feat: add f3" {
		t.Errorf("committed subject = %q, want %q", subjects[0], "feat: add f3")
	}
}

func TestCommit_signOff(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	writeFile(t, dir, "f3.txt", "hi\n")
	run(t, dir, "git", "add", "f3.txt")
	repo := mustOpen(t, dir)
	ctx := context.Background()
	if err := repo.Commit(ctx, "chore: signed", nil, true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	cmd := exec.Command("git", "log", "-n", "1", "--pretty=format:%B")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "Signed-off-by:") {
		t.Errorf("commit body missing sign-off: %q", out)
	}
}

func TestCommit_forwardedMessageFlagOnly(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	writeFile(t, dir, "f3.txt", "hi\n")
	run(t, dir, "git", "add", "f3.txt")
	repo := mustOpen(t, dir)
	ctx := context.Background()
	// Empty message: the forwarded args carry -m and pass through unchanged.
	if err := repo.Commit(ctx, "", []string{"-m", "forwarded subject"}, false); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	subjects, err := repo.Subjects(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if subjects[0] != "forwarded subject" {
		t.Errorf("committed subject = %q, want %q", subjects[0], "forwarded subject")
	}
}

func TestCommit_hookStdoutSurfacesInError(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	hookDir := filepath.Join(dir, ".git", "hooks")
	if err := os.MkdirAll(hookDir, 0755); err != nil {
		t.Fatal(err)
	}
	hook := "#!/bin/sh\necho commit blocked by hook\nexit 1\n"
	if err := os.WriteFile(filepath.Join(hookDir, "pre-commit"), []byte(hook), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "f3.txt", "hi\n")
	run(t, dir, "git", "add", "f3.txt")
	repo := mustOpen(t, dir)
	err := repo.Commit(context.Background(), "feat: blocked", nil, false)
	if err == nil {
		t.Fatal("Commit with failing hook: expected error")
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type = %T, want *ExecError", err)
	}
	if !strings.Contains(execErr.Stderr, "commit blocked by hook") {
		t.Errorf("diagnostics = %q, want the hook's stdout text", execErr.Stderr)
	}
}

func TestCommit_nothingStaged_reportsStderr(t *testing.T) {
	t.Parallel()
	repo := mustOpen(t, initRepo(t))
	err := repo.Commit(context.Background(), "noop", nil, false)
	if err == nil {
		t.Fatal("Commit with nothing staged: expected error")
	}
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("error type = %T, want *ExecError", err)
	}
}

func TestDir_pointsAtGitDir(t *testing.T) {
	t.Parallel()
	dir := initRepo(t)
	repo := mustOpen(t, dir)
	got, err := repo.Dir(context.Background())
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if filepath.Base(got) != ".git" {
		t.Errorf("Dir = %q, want a .git path", got)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("Dir does not exist: %v", err)
	}
}

func TestHead_oneline(t *testing.T) {
	t.Parallel()
	repo := mustOpen(t, initRepo(t))
	out, err := repo.Head(context.Background())
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if !strings.Contains(out, "fix: second") {
		t.Errorf("Head = %q, want it to mention the latest subject", out)
	}
}

func mustOpen(t *testing.T, dir string) *Repo {
	t.Helper()
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open(%q): %v", dir, err)
	}
	return repo
}
