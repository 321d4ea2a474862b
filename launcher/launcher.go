// Package launcher resolves deploy targets and supervises deploy scripts.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oar-cd/pushdeploy/domain"
)

// waitDelay is how long Wait keeps reading output after the script exits.
// Background children that inherit stdout would otherwise hold the run open.
const waitDelay = 10 * time.Second

var (
	ErrInvalidRepository = errors.New("invalid repository name")
	ErrDirectoryNotFound = errors.New("project directory not found")
	ErrScriptNotFound    = errors.New("deploy script not found or not executable")
	ErrInvalidScriptPath = errors.New("deploy script path leaves the project directory")
)

// Status is the synchronous result of a launch attempt
type Status int

const (
	ResultStarted Status = iota
	ResultDirectoryNotFound
	ResultScriptNotFound
	ResultLaunchFailed
)

func (s Status) String() string {
	switch s {
	case ResultStarted:
		return "started"
	case ResultDirectoryNotFound:
		return "directory_not_found"
	case ResultScriptNotFound:
		return "script_not_found"
	case ResultLaunchFailed:
		return "launch_failed"
	default:
		return "unknown"
	}
}

// Result is returned by Launch. Run is only set when Status is ResultStarted.
type Result struct {
	Status Status
	Target domain.DeploymentTarget
	Run    domain.DeploymentRun
	Err    error
}

// Notifier receives the outcome of every run that was started
type Notifier interface {
	Notify(outcome domain.Outcome)
}

type Options struct {
	ProjectsRoot  string
	ScriptName    string
	TailLines     int
	// NotifyOnStart sends a Triggered outcome once the script is running,
	// always ahead of the run's terminal outcome
	NotifyOnStart bool
	Logger        *slog.Logger
}

// Launcher starts deploy scripts and reports their completion. It keeps a
// table of running scripts for shutdown; it never queues or deduplicates.
type Launcher struct {
	projectsRoot  string
	scriptName    string
	tailLines     int
	notifyOnStart bool
	notifier      Notifier
	logger        *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]domain.DeploymentRun
	wg      sync.WaitGroup
}

func New(opts Options, notifier Notifier) *Launcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scriptName := opts.ScriptName
	if scriptName == "" {
		scriptName = domain.DefaultScriptName
	}
	return &Launcher{
		projectsRoot:  opts.ProjectsRoot,
		scriptName:    scriptName,
		tailLines:     opts.TailLines,
		notifyOnStart: opts.NotifyOnStart,
		notifier:      notifier,
		logger:        logger.With("layer", "launcher"),
		running:       make(map[uuid.UUID]domain.DeploymentRun),
	}
}

// Resolve maps a repository name to its target and checks that the
// directory and an executable script exist. It does not start anything.
func (l *Launcher) Resolve(repository string) (domain.DeploymentTarget, error) {
	if err := validateRepositoryName(repository); err != nil {
		return domain.DeploymentTarget{}, err
	}

	target := domain.NewDeploymentTarget(l.projectsRoot, repository, l.scriptName)
	if !filepath.IsLocal(l.scriptName) {
		return target, fmt.Errorf("%w: %q", ErrInvalidScriptPath, l.scriptName)
	}

	info, err := os.Stat(target.Dir)
	if err != nil || !info.IsDir() {
		return target, fmt.Errorf("%w: %s", ErrDirectoryNotFound, target.Dir)
	}

	if state := checkScript(target.Script); state != ScriptReady {
		return target, fmt.Errorf("%w: %s (%s)", ErrScriptNotFound, target.Script, state)
	}

	return target, nil
}

// Launch starts the deploy script for repository and returns as soon as
// the process is running. Completion is reported to the Notifier from a
// background goroutine.
func (l *Launcher) Launch(repository string) Result {
	target, err := l.Resolve(repository)
	switch {
	case errors.Is(err, ErrInvalidRepository), errors.Is(err, ErrDirectoryNotFound):
		l.logger.Error("Project directory not found",
			"operation", "resolve_target",
			"repository", repository,
			"deploy_dir", target.Dir,
			"error", err)
		return Result{Status: ResultDirectoryNotFound, Target: target, Err: err}
	case errors.Is(err, ErrScriptNotFound):
		l.logger.Error("Deploy script not found",
			"operation", "resolve_target",
			"repository", repository,
			"deploy_path", target.Script,
			"error", err)
		return Result{Status: ResultScriptNotFound, Target: target, Err: err}
	case err != nil:
		l.logger.Error("Failed to resolve deploy target",
			"operation", "resolve_target",
			"repository", repository,
			"deploy_dir", target.Dir,
			"deploy_path", target.Script,
			"error", err)
		return Result{Status: ResultLaunchFailed, Target: target, Err: err}
	}

	run, err := l.start(target)
	if err != nil {
		l.logger.Error("Failed to start deploy script",
			"operation", "start_script",
			"repository", repository,
			"deploy_path", target.Script,
			"error", err)
		return Result{Status: ResultLaunchFailed, Target: target, Err: err}
	}

	return Result{Status: ResultStarted, Target: target, Run: run}
}

func (l *Launcher) start(target domain.DeploymentTarget) (domain.DeploymentRun, error) {
	run := domain.NewDeploymentRun(target)
	logger := l.logger.With("repository", target.Repository, "run_id", run.ID.String())

	tail := newTailBuffer(l.tailLines)
	stdout := newLineWriter("stdout", logger, tail)
	stderr := newLineWriter("stderr", logger, tail)

	cmd := exec.Command(target.Script)
	cmd.Dir = target.Dir
	cmd.Stdin = nil
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay
	cmd.Env = append(os.Environ(),
		"PUSHDEPLOY_REPOSITORY="+target.Repository,
		"PUSHDEPLOY_RUN_ID="+run.ID.String(),
	)
	detach(cmd)

	logger.Info("Starting deploy script",
		"operation", "start_script",
		"deploy_path", target.Script)

	if err := cmd.Start(); err != nil {
		return domain.DeploymentRun{}, fmt.Errorf("failed to start %s: %w", target.Script, err)
	}
	run.PID = cmd.Process.Pid

	l.track(run)
	if l.notifyOnStart && l.notifier != nil {
		l.notifier.Notify(domain.Triggered(target.Repository))
	}
	go l.supervise(cmd, run, tail, logger, stdout, stderr)

	logger.Info("Deploy script started", "pid", run.PID)
	return run, nil
}

// supervise waits for the script, records its outcome and hands it to the
// notifier exactly once.
func (l *Launcher) supervise(
	cmd *exec.Cmd,
	run domain.DeploymentRun,
	tail *tailBuffer,
	logger *slog.Logger,
	writers ...*lineWriter,
) {
	defer l.untrack(run.ID)

	reported := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Deploy supervisor panicked",
				"operation", "supervise",
				"panic", fmt.Sprint(r))
			if reported {
				return
			}
			run.FinishedAt = time.Now()
			run.Status = domain.RunStatusFailed
			if run.ExitCode == 0 {
				run.ExitCode = -1
			}
			run.Output = tail.String()
			l.report(run)
		}
	}()

	waitErr := cmd.Wait()
	for _, w := range writers {
		w.Flush()
	}

	run.FinishedAt = time.Now()
	run.Output = tail.String()
	run.ExitCode = exitCode(cmd, waitErr)

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
	case errors.Is(waitErr, exec.ErrWaitDelay):
		logger.Warn("Deploy script left output open after exiting",
			"operation", "supervise",
			"error", waitErr)
	default:
		logger.Error("Failed waiting for deploy script",
			"operation", "supervise",
			"error", waitErr)
		if run.ExitCode == 0 {
			run.ExitCode = -1
		}
	}

	if run.ExitCode == 0 {
		run.Status = domain.RunStatusSucceeded
	} else {
		run.Status = domain.RunStatusFailed
	}

	logger.Info("Deploy finished",
		"operation", "supervise",
		"exit_code", run.ExitCode,
		"status", run.Status.String(),
		"duration", run.Duration().String(),
		"output_lines", tail.Total())

	reported = true
	l.report(run)
}

func (l *Launcher) report(run domain.DeploymentRun) {
	if l.notifier == nil {
		return
	}
	l.notifier.Notify(domain.OutcomeFromRun(run))
}

func exitCode(cmd *exec.Cmd, waitErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if waitErr != nil {
		return -1
	}
	return 0
}

func (l *Launcher) track(run domain.DeploymentRun) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running[run.ID] = run
	l.wg.Add(1)
}

func (l *Launcher) untrack(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.running[id]; ok {
		delete(l.running, id)
		l.wg.Done()
	}
}

// Running returns the runs that have not finished yet, oldest first
func (l *Launcher) Running() []domain.DeploymentRun {
	l.mu.Lock()
	runs := make([]domain.DeploymentRun, 0, len(l.running))
	for _, run := range l.running {
		runs = append(runs, run)
	}
	l.mu.Unlock()

	slices.SortFunc(runs, func(a, b domain.DeploymentRun) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return runs
}

// Wait blocks until all running scripts finish or ctx is done. Scripts
// still running at that point are left alone; they live in their own
// process group.
func (l *Launcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, run := range l.Running() {
			l.logger.Warn("Deploy still running at shutdown",
				"operation", "wait",
				"repository", run.Target.Repository,
				"run_id", run.ID.String(),
				"pid", run.PID,
				"running_for", run.Duration().String())
		}
		return ctx.Err()
	}
}

// validateRepositoryName keeps the target inside the projects root
func validateRepositoryName(repository string) error {
	switch {
	case repository == "", repository == ".", repository == "..":
		return fmt.Errorf("%w: %q", ErrInvalidRepository, repository)
	case strings.ContainsAny(repository, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidRepository, repository)
	case filepath.Base(repository) != repository:
		return fmt.Errorf("%w: %q", ErrInvalidRepository, repository)
	}
	return nil
}
