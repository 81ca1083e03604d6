package samples

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"riboviz/workflow/models"
	"riboviz/workflow/models/constants/stage"
	"riboviz/workflow/models/workflow"
	"riboviz/workflow/services/paths"
	"riboviz/workflow/services/process"
)

func testRunner(t *testing.T, root string) (*JobRunner, *bytes.Buffer) {
	t.Helper()
	cfg := &models.Config{}
	cfg.Workflow = models.Workflow{
		DirIndex: filepath.Join(root, "index"),
		DirTmp:   filepath.Join(root, "tmp"),
		DirOut:   filepath.Join(root, "output"),
		DirLogs:  filepath.Join(root, "logs"),
	}

	planner := paths.NewPlanner(cfg, time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC))
	assert.NoError(t, planner.EnsureDirectories())

	logBuffer := &bytes.Buffer{}
	return NewJobRunner(cfg, planner, &process.Runner{}, log.New(logBuffer, "", 0)), logBuffer
}

func sh(script string) []string {
	return []string{"/bin/sh", "-c", script}
}

func writeReads(t *testing.T, filePath string) {
	t.Helper()
	assert.NoError(t, os.WriteFile(filePath, []byte("@r1\nACGT\n+\nIIII\n"), 0644))
}

func TestRunsAllStagesToSuccess(t *testing.T) {
	root := t.TempDir()
	r, _ := testRunner(t, root)

	inputPath := filepath.Join(root, "WTnone.fastq")
	writeReads(t, inputPath)
	trimFq := r.Planner.SampleTmpFile("WTnone", paths.TrimFq)

	job := workflow.NewSampleJob("WTnone", inputPath, []workflow.Stage{
		{Name: stage.Cutadapt, Command: sh("echo trimmed > " + trimFq),
			RequiredInput: inputPath, Outputs: []string{trimFq}},
		{Name: stage.Hisat2Rrna, Command: sh("true"), RequiredInput: trimFq},
	})
	r.RunJob(context.Background(), job)

	assert.Equal(t, workflow.Succeeded, job.Status)
	assert.Len(t, job.Results, 2)
	for _, result := range job.Results {
		assert.Equal(t, 0, result.ExitCode)
		assert.False(t, result.Skipped)
	}
	assert.FileExists(t, r.Planner.SampleStageLog("WTnone", 1, stage.Cutadapt))
	assert.FileExists(t, r.Planner.SampleStageLog("WTnone", 2, stage.Hisat2Rrna))
}

func TestStopsAtTheFirstFailure(t *testing.T) {
	root := t.TempDir()
	r, logBuffer := testRunner(t, root)

	inputPath := filepath.Join(root, "WT3AT.fastq")
	writeReads(t, inputPath)
	sentinel := filepath.Join(root, "never")

	job := workflow.NewSampleJob("WT3AT", inputPath, []workflow.Stage{
		{Name: stage.Cutadapt, Command: sh("true"), RequiredInput: inputPath},
		{Name: stage.Hisat2Rrna, Command: sh("exit 7"), RequiredInput: inputPath},
		{Name: stage.Hisat2Orf, Command: sh("touch " + sentinel), RequiredInput: inputPath},
	})
	r.RunJob(context.Background(), job)

	assert.Equal(t, workflow.Failed, job.Status)
	assert.Len(t, job.Results, 2)
	assert.Equal(t, 7, job.Results[1].ExitCode)
	assert.Equal(t, stage.Hisat2Rrna, job.FailedStage())
	assert.NoFileExists(t, sentinel)
	assert.Contains(t, logBuffer.String(), "failed with exit code 7")
}

func TestSkipsJobWhenFirstInputIsMissing(t *testing.T) {
	root := t.TempDir()
	r, logBuffer := testRunner(t, root)

	inputPath := filepath.Join(root, "NotHere.fastq")
	job := workflow.NewSampleJob("NotHere", inputPath, []workflow.Stage{
		{Name: stage.Cutadapt, Command: sh("true"), RequiredInput: inputPath},
		{Name: stage.Hisat2Rrna, Command: sh("true"), RequiredInput: inputPath},
	})
	r.RunJob(context.Background(), job)

	assert.Equal(t, workflow.Succeeded, job.Status)
	assert.Len(t, job.Results, 1)
	assert.True(t, job.Results[0].Skipped)
	assert.Contains(t, logBuffer.String(), "skipping remaining stages")
}

func TestSkipsRestOfJobWhenAnIntermediateIsEmpty(t *testing.T) {
	root := t.TempDir()
	r, _ := testRunner(t, root)

	inputPath := filepath.Join(root, "WTnone.fastq")
	writeReads(t, inputPath)
	trimFq := r.Planner.SampleTmpFile("WTnone", paths.TrimFq)

	// The first stage succeeds but leaves an empty file, as a trimmer
	// does when every read is shorter than the minimum.
	job := workflow.NewSampleJob("WTnone", inputPath, []workflow.Stage{
		{Name: stage.Cutadapt, Command: sh(": > " + trimFq),
			RequiredInput: inputPath, Outputs: []string{trimFq}},
		{Name: stage.Hisat2Rrna, Command: sh("true"), RequiredInput: trimFq},
	})
	r.RunJob(context.Background(), job)

	assert.Equal(t, workflow.Succeeded, job.Status)
	assert.Len(t, job.Results, 2)
	assert.False(t, job.Results[0].Skipped)
	assert.True(t, job.Results[1].Skipped)
	assert.Equal(t, stage.Hisat2Rrna, job.Results[1].Stage)
}

func TestCancelledContextStartsNoStages(t *testing.T) {
	root := t.TempDir()
	r, _ := testRunner(t, root)

	inputPath := filepath.Join(root, "WTnone.fastq")
	writeReads(t, inputPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := workflow.NewSampleJob("WTnone", inputPath, []workflow.Stage{
		{Name: stage.Cutadapt, Command: sh("true"), RequiredInput: inputPath},
	})
	r.RunJob(ctx, job)

	assert.Equal(t, workflow.Cancelled, job.Status)
	assert.Empty(t, job.Results)
}

func TestRunningStageFinishesBeforeCancellationTakesHold(t *testing.T) {
	root := t.TempDir()
	r, _ := testRunner(t, root)

	inputPath := filepath.Join(root, "WTnone.fastq")
	writeReads(t, inputPath)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	job := workflow.NewSampleJob("WTnone", inputPath, []workflow.Stage{
		{Name: stage.Cutadapt, Command: sh("sleep 0.4"), RequiredInput: inputPath},
		{Name: stage.Hisat2Rrna, Command: sh("true"), RequiredInput: inputPath},
	})
	r.RunJob(ctx, job)

	assert.Equal(t, workflow.Cancelled, job.Status)
	assert.Len(t, job.Results, 1)
	assert.Equal(t, 0, job.Results[0].ExitCode)
}

func TestDryRunWalksTheWholePlanWithoutProbing(t *testing.T) {
	root := t.TempDir()
	r, _ := testRunner(t, root)
	r.Config.DryRun = true
	r.Process.DryRun = true
	r.Process.CmdFile = filepath.Join(root, "run.sh")

	inputPath := filepath.Join(root, "absent.fastq")
	job := workflow.NewSampleJob("WTnone", inputPath, []workflow.Stage{
		{Name: stage.Cutadapt, Command: []string{"cutadapt", "-o", "trim.fq"}, RequiredInput: inputPath},
		{Name: stage.Hisat2Rrna, Command: []string{"hisat2", "-S", "rRNA_map.sam"}, RequiredInput: "missing.fq"},
	})
	r.RunJob(context.Background(), job)

	assert.Equal(t, workflow.Succeeded, job.Status)
	assert.Len(t, job.Results, 2)

	traced, err := os.ReadFile(r.Process.CmdFile)
	assert.NoError(t, err)
	assert.Contains(t, string(traced), "cutadapt -o trim.fq")
	assert.Contains(t, string(traced), "hisat2 -S rRNA_map.sam")
	assert.NoFileExists(t, r.Planner.SampleStageLog("WTnone", 1, stage.Cutadapt))
}
