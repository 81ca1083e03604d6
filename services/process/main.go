package process

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"riboviz/workflow/models/workflow"
	"riboviz/workflow/utils"
)

// Result is the structured outcome of one external invocation. A
// non-zero exit is data, not an error; errors are reserved for
// invocations that could not be made at all.
type Result struct {
	ExitCode int
	Duration time.Duration
}

// Runner executes external commands, capturing their output into
// per-stage log files. It never retries; retry policy, if any,
// belongs to callers. With DryRun set, commands are traced but not
// executed and nothing is written to disk beyond the trace.
type Runner struct {
	// CmdFile, when set, accumulates every command line as a shell
	// script reproducing the run.
	CmdFile string
	DryRun  bool

	traceMux sync.Mutex
}

// Run executes one command, writing its combined stdout and stderr to
// logPath.
func (r *Runner) Run(command []string, logPath string) (Result, error) {
	if err := r.trace(strings.Join(command, " ")); err != nil {
		return Result{}, err
	}
	if r.DryRun {
		return Result{}, nil
	}

	logFile, err := utils.CreateAndGetNewFile(logPath)
	if err != nil {
		return Result{}, err
	}
	defer logFile.Close()

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	started := time.Now()
	runErr := cmd.Run()
	return r.settle(logFile, started, runErr)
}

// RunRedirect executes one command with stdout captured into
// stdoutPath, as a shell `>` would, and stderr into logPath.
func (r *Runner) RunRedirect(command []string, stdoutPath string, logPath string) (Result, error) {
	if err := r.trace(strings.Join(command, " ") + " > " + stdoutPath); err != nil {
		return Result{}, err
	}
	if r.DryRun {
		return Result{}, nil
	}

	logFile, err := utils.CreateAndGetNewFile(logPath)
	if err != nil {
		return Result{}, err
	}
	defer logFile.Close()

	stdoutFile, err := utils.CreateAndGetNewFile(stdoutPath)
	if err != nil {
		return Result{}, err
	}
	defer stdoutFile.Close()

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdout = stdoutFile
	cmd.Stderr = logFile

	started := time.Now()
	runErr := cmd.Run()
	return r.settle(logFile, started, runErr)
}

// RunPipe executes `left | right`, with both commands' stderr and the
// right command's stdout written to logPath. The connecting pipe is a
// kernel pipe, so the usual shell semantics apply if either side
// exits early. A failing left side wins when reporting the exit code.
func (r *Runner) RunPipe(left []string, right []string, logPath string) (Result, error) {
	if err := r.trace(strings.Join(left, " ") + " | " + strings.Join(right, " ")); err != nil {
		return Result{}, err
	}
	if r.DryRun {
		return Result{}, nil
	}

	logFile, err := utils.CreateAndGetNewFile(logPath)
	if err != nil {
		return Result{}, err
	}
	defer logFile.Close()

	pipeReader, pipeWriter, err := os.Pipe()
	if err != nil {
		return Result{}, err
	}

	leftCmd := exec.Command(left[0], left[1:]...)
	leftCmd.Stdout = pipeWriter
	leftCmd.Stderr = logFile

	rightCmd := exec.Command(right[0], right[1:]...)
	rightCmd.Stdin = pipeReader
	rightCmd.Stdout = logFile
	rightCmd.Stderr = logFile

	started := time.Now()

	if err := leftCmd.Start(); err != nil {
		pipeReader.Close()
		pipeWriter.Close()
		fmt.Fprintln(logFile, err.Error())
		return Result{ExitCode: -1, Duration: time.Since(started)}, err
	}
	if err := rightCmd.Start(); err != nil {
		pipeReader.Close()
		pipeWriter.Close()
		leftCmd.Wait()
		fmt.Fprintln(logFile, err.Error())
		return Result{ExitCode: -1, Duration: time.Since(started)}, err
	}

	// The children hold their own descriptor copies.
	pipeWriter.Close()
	pipeReader.Close()

	leftErr := leftCmd.Wait()
	rightErr := rightCmd.Wait()

	leftResult, err := r.settle(logFile, started, leftErr)
	if err != nil {
		return leftResult, err
	}
	if leftResult.ExitCode != 0 {
		return leftResult, nil
	}
	return r.settle(logFile, started, rightErr)
}

// RunStage dispatches a stage descriptor to the matching primitive.
func (r *Runner) RunStage(st workflow.Stage, logPath string) (Result, error) {
	switch {
	case len(st.PipeTo) > 0:
		return r.RunPipe(st.Command, st.PipeTo, logPath)
	case st.StdoutFile != "":
		return r.RunRedirect(st.Command, st.StdoutFile, logPath)
	default:
		return r.Run(st.Command, logPath)
	}
}

func (r *Runner) settle(logFile *os.File, started time.Time, runErr error) (Result, error) {
	duration := time.Since(started)
	if runErr == nil {
		return Result{ExitCode: 0, Duration: duration}, nil
	}
	if exitErr, ok := runErr.(*exec.ExitError); ok {
		return Result{ExitCode: exitErr.ExitCode(), Duration: duration}, nil
	}
	// The process could not be started at all; preserve the reason
	// alongside whatever the log already holds.
	fmt.Fprintln(logFile, runErr.Error())
	return Result{ExitCode: -1, Duration: duration}, runErr
}

func (r *Runner) trace(commandLine string) error {
	if r.CmdFile == "" {
		return nil
	}
	r.traceMux.Lock()
	defer r.traceMux.Unlock()
	return utils.AppendLine(r.CmdFile, commandLine)
}
