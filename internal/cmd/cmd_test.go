package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/roundtable/internal/agent"
	"github.com/Iron-Ham/roundtable/internal/config"
	rterrors "github.com/Iron-Ham/roundtable/internal/errors"
	"github.com/Iron-Ham/roundtable/internal/logging"
	"github.com/Iron-Ham/roundtable/internal/orchestrator"
	"github.com/Iron-Ham/roundtable/internal/orchestrator/completion"
	"github.com/Iron-Ham/roundtable/internal/session"
)

const doneScript = "defaults:\n" +
	"  \"*\": |\n" +
	"    File: README.md\n" +
	"    ```markdown\n" +
	"    # demo\n" +
	"    ```\n" +
	"    The project is complete.\n"

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// isolateConfig keeps tests away from the user's config file and environment.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "roundtable" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "roundtable")
	}

	cmdMap := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		cmdMap[c.Name()] = true
	}
	for _, expected := range []string{"run", "batch", "agents", "show", "runs", "logs", "config"} {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestRunCommand_EndToEnd(t *testing.T) {
	isolateConfig(t)
	projectDir := filepath.Join(t.TempDir(), "demo")
	script := writeScript(t, doneScript)

	output, err := executeCommand(rootCmd, "run", projectDir,
		"--task", "write a readme",
		"--backend", "script",
		"--script", script,
		"--min-iterations", "1",
		"--quiet",
	)
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, output)
	}
	for _, want := range []string{"stopped (consensus)", "1 iteration, stopped early at iteration 1", "README.md"} {
		if !strings.Contains(output, want) {
			t.Errorf("run output missing %q\n%s", want, output)
		}
	}

	data, err := os.ReadFile(filepath.Join(projectDir, "README.md"))
	if err != nil || strings.TrimSpace(string(data)) != "# demo" {
		t.Errorf("README.md = %q, %v", data, err)
	}

	output, err = executeCommand(rootCmd, "runs", "--root", projectDir)
	if err != nil {
		t.Fatalf("runs error = %v", err)
	}
	if !strings.Contains(output, "write a readme") {
		t.Errorf("runs output missing the task\n%s", output)
	}

	output, err = executeCommand(rootCmd, "show", "--root", projectDir)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	if !strings.Contains(output, "stopped (consensus)") {
		t.Errorf("show output = %s", output)
	}

	output, err = executeCommand(rootCmd, "logs", "--root", projectDir, "-n", "0", "--format", "json")
	if err != nil {
		t.Fatalf("logs error = %v", err)
	}
	if !strings.Contains(output, `"msg"`) {
		t.Errorf("logs output = %s", output)
	}
}

func TestAgentsCommand(t *testing.T) {
	isolateConfig(t)

	output, err := executeCommand(rootCmd, "agents")
	if err != nil {
		t.Fatalf("agents error = %v\n%s", err, output)
	}
	first := agent.Ordered(agent.DefaultRoster())[0]
	for _, want := range []string{
		"1. " + first.DisplayName(),
		fmt.Sprintf("Completion phrases (%d)", len(completion.DefaultPhrases)),
		"  " + completion.Normalize(completion.DefaultPhrases[0]),
	} {
		if !strings.Contains(output, want) {
			t.Errorf("agents output missing %q\n%s", want, output)
		}
	}
}

func TestExecuteRun(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Run.MinIterations = 1
	cfg.Run.MaxIterations = 3
	cfg.Logging.Enabled = false

	var invocations int
	job := runJob{
		root: root,
		task: "build it",
		cfg:  cfg,
		roster: []agent.Descriptor{
			{Role: "architect", Priority: 1},
			{Role: "qa", Priority: 2},
		},
		invoker: agent.InvokerFunc(func(ctx context.Context, req agent.Request) (string, error) {
			invocations++
			if req.Iteration < 2 {
				return "File: main.go\n```go\npackage main\n```\n", nil
			}
			return "Task complete.", nil
		}),
	}

	res, err := executeRun(context.Background(), job)
	if err != nil {
		t.Fatalf("executeRun() error = %v", err)
	}
	if res.State != orchestrator.StateStopped || res.Iterations != 2 || invocations != 4 {
		t.Errorf("result = %s after %d iterations, %d invocations", res.State, res.Iterations, invocations)
	}

	stateRoot := cfg.Paths.ResolveStateDir(root)
	if _, locked := session.IsLocked(stateRoot); locked {
		t.Error("lock must be released after the run")
	}
	info, err := session.FindRun(root, stateRoot, res.ID)
	if err != nil {
		t.Fatalf("FindRun() error = %v", err)
	}
	saved, err := session.LoadReport(info.RunDir)
	if err != nil {
		t.Fatalf("LoadReport() error = %v", err)
	}
	if saved.Reason != orchestrator.ReasonConsensus || len(saved.Records) != 2 {
		t.Errorf("saved report = %+v", saved)
	}

	if _, err := os.Stat(filepath.Join(root, "main.go")); err != nil {
		t.Errorf("main.go not written: %v", err)
	}
}

func TestExecuteRun_InvalidConfig(t *testing.T) {
	root := filepath.Join(t.TempDir(), "never-created")
	cfg := config.Default()
	cfg.Run.MaxIterations = 0

	_, err := executeRun(context.Background(), runJob{
		root:    root,
		task:    "x",
		cfg:     cfg,
		invoker: agent.InvokerFunc(func(context.Context, agent.Request) (string, error) { return "", nil }),
	})
	if !rterrors.Is(err, rterrors.ErrInvalidConfig) {
		t.Fatalf("executeRun() error = %v, want ErrInvalidConfig", err)
	}
	if _, statErr := os.Stat(root); !os.IsNotExist(statErr) {
		t.Error("an invalid config must not touch the project directory")
	}
}

func TestExecuteRun_ProjectLocked(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	stateRoot := cfg.Paths.ResolveStateDir(root)

	lock, err := session.AcquireLock(stateRoot, "other-run", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = executeRun(context.Background(), runJob{
		root:    root,
		task:    "x",
		cfg:     cfg,
		invoker: agent.InvokerFunc(func(context.Context, agent.Request) (string, error) { return "", nil }),
	})
	if !rterrors.Is(err, session.ErrProjectLocked) {
		t.Errorf("executeRun() error = %v, want ErrProjectLocked", err)
	}
}

func TestExitCode(t *testing.T) {
	root := t.TempDir()
	_, invalidErr := executeRun(context.Background(), runJob{
		root:   root,
		task:   "   ",
		cfg:    config.Default(),
		roster: nil,
	})

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"invalid run configuration", invalidErr, 2},
		{"root unavailable", rterrors.NewWorkspaceError("open", rterrors.ErrRootUnavailable), 2},
		{"missing task", func() error { _, err := readTask("", "", nil); return err }(), 2},
		{"run not found", rterrors.NewNotFoundError("run", "abc").WithCause(rterrors.ErrRunNotFound), 1},
		{"plain", rterrors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestProjectStateDir(t *testing.T) {
	root := filepath.FromSlash("/work/project")
	tests := []struct {
		name      string
		stateRoot string
		want      string
	}{
		{"inside root", filepath.FromSlash("/work/project/.roundtable"), ".roundtable"},
		{"nested inside root", filepath.FromSlash("/work/project/build/state"), filepath.FromSlash("build/state")},
		{"outside root", filepath.FromSlash("/var/state"), filepath.FromSlash("/var/state")},
		{"sibling with shared prefix", filepath.FromSlash("/work/project-state"), filepath.FromSlash("/work/project-state")},
		{"root itself", root, root},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := projectStateDir(root, tt.stateRoot); got != tt.want {
				t.Errorf("projectStateDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUniqueRoots(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	got, err := uniqueRoots([]string{a, b, a + string(filepath.Separator), filepath.Join(dir, "b", "..", "a")})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("uniqueRoots() = %v, want [%s %s]", got, a, b)
	}
}

func TestReadTask(t *testing.T) {
	taskFile := filepath.Join(t.TempDir(), "task.md")
	if err := os.WriteFile(taskFile, []byte("from file"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		task     string
		taskFile string
		stdin    string
		want     string
		wantErr  bool
	}{
		{name: "flag wins", task: "from flag", taskFile: taskFile, want: "from flag"},
		{name: "file", taskFile: taskFile, want: "from file"},
		{name: "stdin", taskFile: "-", stdin: "from stdin", want: "from stdin"},
		{name: "blank flag falls through to file", task: "  ", taskFile: taskFile, want: "from file"},
		{name: "missing", wantErr: true},
		{name: "unreadable file", taskFile: filepath.Join(t.TempDir(), "nope"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readTask(tt.task, tt.taskFile, strings.NewReader(tt.stdin))
			if (err != nil) != tt.wantErr {
				t.Fatalf("readTask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("readTask() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTailEntries(t *testing.T) {
	entries := []logging.LogEntry{{Message: "a"}, {Message: "b"}, {Message: "c"}}
	tests := []struct {
		n    int
		want string
	}{
		{0, "abc"},
		{2, "bc"},
		{5, "abc"},
	}
	for _, tt := range tests {
		var sb strings.Builder
		for _, e := range tailEntries(entries, tt.n) {
			sb.WriteString(e.Message)
		}
		if sb.String() != tt.want {
			t.Errorf("tailEntries(%d) = %q, want %q", tt.n, sb.String(), tt.want)
		}
	}
}

func TestBuildLogFilter(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	defer func() { logsLevel, logsSince, logsAgent = "", "", "" }()

	logsLevel, logsSince, logsAgent = "warning", "90m", "qa"
	filter, err := buildLogFilter(now)
	if err != nil {
		t.Fatalf("buildLogFilter() error = %v", err)
	}
	if filter.Level != logging.LevelWarn || filter.Agent != "qa" || !filter.StartTime.Equal(now.Add(-90*time.Minute)) {
		t.Errorf("filter = %+v", filter)
	}

	logsLevel, logsSince = "loud", ""
	if _, err := buildLogFilter(now); err == nil {
		t.Error("unknown level should fail")
	}

	logsLevel, logsSince = "", "yesterday"
	if _, err := buildLogFilter(now); err == nil {
		t.Error("bad duration should fail")
	}
}

func TestSummarizeBatch(t *testing.T) {
	var buf bytes.Buffer
	err := summarizeBatch(&buf, []batchOutcome{
		{root: "/a", result: &orchestrator.RunResult{ID: "12345678abcd", State: orchestrator.StateStopped, Reason: orchestrator.ReasonConsensus, Iterations: 3}},
		{root: "/b", err: session.ErrProjectLocked},
	})
	if !rterrors.Is(err, session.ErrProjectLocked) {
		t.Errorf("summarizeBatch() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"/a  run 12345678  stopped (consensus) after 3 iterations", "/b  not started"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
}

func TestDefaultConfigYAML(t *testing.T) {
	data, err := defaultConfigYAML()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"max_iterations: 5", "consensus_threshold: 0.7", "state_dir: .roundtable"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("default config missing %q\n%s", want, data)
		}
	}
}
