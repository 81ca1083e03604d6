package process

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"riboviz/workflow/models/constants/stage"
	"riboviz/workflow/models/workflow"
)

func sh(script string) []string {
	return []string{"/bin/sh", "-c", script}
}

func readFile(t *testing.T, filePath string) string {
	t.Helper()
	contents, err := os.ReadFile(filePath)
	assert.NoError(t, err)
	return string(contents)
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{}

	logPath := filepath.Join(dir, "logs", "01_cutadapt.log")
	result, err := r.Run(sh("echo out; echo err >&2"), logPath)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	contents := readFile(t, logPath)
	assert.Contains(t, contents, "out")
	assert.Contains(t, contents, "err")
}

func TestNonZeroExitIsDataNotError(t *testing.T) {
	r := &Runner{}

	result, err := r.Run(sh("exit 3"), filepath.Join(t.TempDir(), "stage.log"))
	assert.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestUnstartableProgramIsAnError(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{}

	logPath := filepath.Join(dir, "stage.log")
	result, err := r.Run([]string{filepath.Join(dir, "no_such_tool")}, logPath)
	assert.Error(t, err)
	assert.Equal(t, -1, result.ExitCode)
	assert.NotEmpty(t, readFile(t, logPath))
}

func TestRunRedirectSplitsStreams(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{}

	stdoutPath := filepath.Join(dir, "plus.bedgraph")
	logPath := filepath.Join(dir, "stage.log")
	result, err := r.RunRedirect(sh("echo payload; echo noise >&2"), stdoutPath, logPath)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	assert.Equal(t, "payload\n", readFile(t, stdoutPath))
	assert.Contains(t, readFile(t, logPath), "noise")
	assert.NotContains(t, readFile(t, logPath), "payload")
}

func TestRunPipeConnectsTheProcesses(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{}

	logPath := filepath.Join(dir, "stage.log")
	result, err := r.RunPipe(sh(`printf 'a\nb\nc\n'`), sh("wc -l"), logPath)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, readFile(t, logPath), "3")
}

func TestFailingPipeSidesReportTheirExitCodes(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{}

	t.Run("LeftSideWins", func(t *testing.T) {
		result, err := r.RunPipe(sh("exit 4"), sh("cat"), filepath.Join(dir, "left.log"))
		assert.NoError(t, err)
		assert.Equal(t, 4, result.ExitCode)
	})

	t.Run("RightSideOtherwise", func(t *testing.T) {
		result, err := r.RunPipe(sh("echo x"), sh("exit 5"), filepath.Join(dir, "right.log"))
		assert.NoError(t, err)
		assert.Equal(t, 5, result.ExitCode)
	})
}

func TestDryRunTracesWithoutExecuting(t *testing.T) {
	dir := t.TempDir()
	cmdFilePath := filepath.Join(dir, "run.sh")
	r := &Runner{CmdFile: cmdFilePath, DryRun: true}

	sentinel := filepath.Join(dir, "sentinel")
	logPath := filepath.Join(dir, "stage.log")
	result, err := r.Run([]string{"touch", sentinel}, logPath)
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)

	assert.NoFileExists(t, sentinel)
	assert.NoFileExists(t, logPath)
	assert.Contains(t, readFile(t, cmdFilePath), "touch "+sentinel)
}

func TestCommandFileAccumulatesInOrder(t *testing.T) {
	dir := t.TempDir()
	cmdFilePath := filepath.Join(dir, "run.sh")
	r := &Runner{CmdFile: cmdFilePath}

	_, err := r.Run(sh("true"), filepath.Join(dir, "a.log"))
	assert.NoError(t, err)
	_, err = r.RunRedirect(sh("echo hi"), filepath.Join(dir, "out.txt"), filepath.Join(dir, "b.log"))
	assert.NoError(t, err)
	_, err = r.RunPipe(sh("echo a"), sh("cat"), filepath.Join(dir, "c.log"))
	assert.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(readFile(t, cmdFilePath)), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[1], " > "+filepath.Join(dir, "out.txt"))
	assert.Contains(t, lines[2], " | ")
}

func TestRunStageDispatchesOnShape(t *testing.T) {
	dir := t.TempDir()
	r := &Runner{}

	piped := workflow.Stage{
		Name:    stage.SamtoolsViewSort,
		Command: sh("echo body"),
		PipeTo:  sh("tr a-z A-Z"),
	}
	result, err := r.RunStage(piped, filepath.Join(dir, "piped.log"))
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, readFile(t, filepath.Join(dir, "piped.log")), "BODY")

	redirected := workflow.Stage{
		Name:       stage.BedgraphPlus,
		Command:    sh("echo track"),
		StdoutFile: filepath.Join(dir, "plus.bedgraph"),
	}
	result, err = r.RunStage(redirected, filepath.Join(dir, "redirected.log"))
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "track\n", readFile(t, filepath.Join(dir, "plus.bedgraph")))

	plain := workflow.Stage{Name: stage.Cutadapt, Command: sh("echo plain")}
	result, err = r.RunStage(plain, filepath.Join(dir, "plain.log"))
	assert.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, readFile(t, filepath.Join(dir, "plain.log")), "plain")
}
