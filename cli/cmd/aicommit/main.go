package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"aicommit/cli/internal/config"
	"aicommit/cli/internal/erruser"
	"aicommit/cli/internal/generate"
	"aicommit/cli/internal/git"
	"aicommit/cli/internal/run"
	"aicommit/cli/internal/trace"
	"aicommit/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing so that
// main.go can meet per-file coverage requirements.
func Run() int {
	// Captured before any prompt so an interrupt mid-ReadPassword can put
	// echo back the way it was.
	fd := int(os.Stdin.Fd())
	var saved *term.State
	if term.IsTerminal(fd) {
		saved, _ = term.GetState(fd)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		cancel(os.Stderr, fd, saved)
		os.Exit(1)
	}()
	return runCLI(os.Args[1:])
}

// cancel restores the terminal state and prints the interrupt notice. Kept
// separate from the signal goroutine so os.Exit stays in one place.
func cancel(out io.Writer, fd int, saved *term.State) {
	if saved != nil {
		_ = term.Restore(fd, saved)
	}
	fmt.Fprintln(out, "\nCancelled.")
}

func runCLI(args []string) int {
	rootCmd := newRootCmd()
	own, forward := splitForwarded(rootCmd.Flags(), args)
	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runRoot(cmd, forward)
	}
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetArgs(own)
	if err := rootCmd.Execute(); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		fmt.Fprintln(os.Stderr, err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(os.Stderr, "Details: %v\n", u)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "aicommit [-- <git commit arguments>]",
		Short:   "Generate a commit message for the staged changes",
		Version: version.String(),
		Args:    cobra.NoArgs,
	}
	cmd.Flags().Bool("auto-commit", false, "Commit immediately with the suggested message; skip confirmation")
	cmd.Flags().Bool("dry-run", false, "Generate and print the message without committing")
	cmd.Flags().Bool("analyze", false, "Analyze commit history, cache the style profile, and exit")
	cmd.Flags().Bool("force-analyze", false, "Re-analyze history before generating, replacing the cached profile")
	cmd.Flags().Int("history-depth", 0, "Commits to scan when analyzing (0 = use config)")
	cmd.Flags().String("cache-file", "", "Style profile location (default: <git dir>/"+config.CacheFilename+")")
	cmd.Flags().String("context", "", "Extra context for the message (e.g. an issue reference)")
	cmd.Flags().String("guidelines", "", "Commit guidelines: inline text, a file path, or an http(s) URL")
	cmd.Flags().Bool("no-signoff", false, "Do not append a Signed-off-by trailer")
	cmd.Flags().String("model", "", "Model to use (overrides config and env)")
	cmd.Flags().Bool("trace", false, "Print internal steps to stderr (history, prompt, API I/O)")
	return cmd
}

// splitForwarded partitions args into the tool's own arguments and the
// arguments forwarded verbatim to git commit. A flag is ours when the root
// command defines it; everything else, including all short flags and
// positional paths, belongs to git. "--" forwards the remainder unchanged.
func splitForwarded(fs *pflag.FlagSet, args []string) (own, forward []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			forward = append(forward, args[i+1:]...)
			return own, forward
		case a == "--help" || a == "-h" || a == "--version":
			own = append(own, a)
		case strings.HasPrefix(a, "--"):
			name := strings.TrimPrefix(a, "--")
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				name = name[:eq]
			}
			f := fs.Lookup(name)
			if f == nil {
				forward = append(forward, a)
				continue
			}
			own = append(own, a)
			// A non-boolean flag written without =value consumes the next
			// argument as its value.
			if f.Value.Type() != "bool" && !strings.Contains(a, "=") && i+1 < len(args) {
				i++
				own = append(own, args[i])
			}
		default:
			// Short flags are never ours; neither are positional pathspecs.
			forward = append(forward, a)
		}
	}
	return own, forward
}

// overridesFromFlags returns config overrides for the flags that were set on
// the command line. Nil when nothing was set.
func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	o := &config.Overrides{}
	set := false
	if f := cmd.Flags().Lookup("model"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetString("model")
		o.Model = &v
		set = true
	}
	if f := cmd.Flags().Lookup("history-depth"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetInt("history-depth")
		o.HistoryDepth = &v
		set = true
	}
	if f := cmd.Flags().Lookup("cache-file"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetString("cache-file")
		o.CacheFile = &v
		set = true
	}
	if f := cmd.Flags().Lookup("no-signoff"); f != nil && f.Changed {
		v, _ := cmd.Flags().GetBool("no-signoff")
		signOff := !v
		o.SignOff = &signOff
		set = true
	}
	if !set {
		return nil
	}
	return o
}

func runRoot(cmd *cobra.Command, forward []string) error {
	autoCommit, _ := cmd.Flags().GetBool("auto-commit")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	analyze, _ := cmd.Flags().GetBool("analyze")
	forceAnalyze, _ := cmd.Flags().GetBool("force-analyze")
	contextNote, _ := cmd.Flags().GetString("context")
	guidelinesRef, _ := cmd.Flags().GetString("guidelines")
	traceOn, _ := cmd.Flags().GetBool("trace")
	var tracer *trace.Tracer
	if traceOn {
		tracer = trace.New(os.Stderr)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return erruser.New("Could not determine current directory.", err)
	}
	repo, err := git.Open(cwd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{
		RepoRoot:  repo.Root(),
		Overrides: overridesFromFlags(cmd),
	})
	if err != nil {
		return err
	}
	gitDir, err := repo.Dir(cmd.Context())
	if err != nil {
		return err
	}

	generator := &generate.Generator{
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		LineWidth:  cfg.LineWidth,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Credential: func() (string, error) { return resolveAPIKey(cfg.APIKeyEnv) },
		Tracer:     tracer,
	}
	opts := run.Options{
		Git:          repo,
		Generator:    generator,
		CachePath:    cfg.EffectiveCachePath(gitDir),
		HistoryDepth: cfg.HistoryDepth,
		Analyze:      analyze,
		ForceAnalyze: forceAnalyze,
		AutoCommit:   autoCommit,
		DryRun:       dryRun,
		SignOff:      cfg.SignOff,
		Context:      contextNote,
		Guidelines:   guidelinesRef,
		ForwardArgs:  forward,
		Tracer:       tracer,
	}
	return mapRunError(run.Run(cmd.Context(), opts))
}

// mapRunError translates a propagated edit-session exit status into the
// errExit form the top level adopts silently; everything else is reported
// before exiting.
func mapRunError(err error) error {
	var editErr *run.ExitError
	if errors.As(err, &editErr) {
		return errExit(editErr.Code)
	}
	return err
}

// resolveAPIKey finds the API key: the configured environment variable
// first, GOOGLE_API_KEY as a fallback, then an interactive no-echo prompt
// when stdin is a terminal. Called lazily, only when a generation is
// actually about to happen.
func resolveAPIKey(keyEnv string) (string, error) {
	if keyEnv == "" {
		keyEnv = "GEMINI_API_KEY"
	}
	if k := strings.TrimSpace(os.Getenv(keyEnv)); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); k != "" {
		return k, nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Enter your API key: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", erruser.New("Could not read the API key.", err)
		}
		if k := strings.TrimSpace(string(b)); k != "" {
			return k, nil
		}
	}
	return "", erruser.New("No API key. Set "+keyEnv+" (or GOOGLE_API_KEY) and try again.", nil)
}
