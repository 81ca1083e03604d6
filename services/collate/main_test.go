package collate

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"riboviz/workflow/models"
	"riboviz/workflow/services/paths"
	"riboviz/workflow/services/process"
	"riboviz/workflow/services/sequencer"
)

func testCollator(t *testing.T, root string, rscriptBody string) (*Collator, string, *bytes.Buffer) {
	t.Helper()

	rscriptStub := filepath.Join(root, "Rscript")
	assert.NoError(t, os.WriteFile(rscriptStub, []byte("#!/bin/sh\n"+rscriptBody), 0755))

	cfg := &models.Config{}
	cfg.Tools.Rscript = rscriptStub
	cfg.Scripts.RDir = filepath.Join(root, "rscripts")
	cfg.Workflow = models.Workflow{
		DirIndex: filepath.Join(root, "index"),
		DirTmp:   filepath.Join(root, "tmp"),
		DirOut:   filepath.Join(root, "output"),
		DirLogs:  filepath.Join(root, "logs"),
	}

	planner := paths.NewPlanner(cfg, time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC))
	assert.NoError(t, planner.EnsureDirectories())

	logBuffer := &bytes.Buffer{}
	logger := log.New(logBuffer, "", 0)
	seq := sequencer.NewSequencer(cfg, planner)
	collator := NewCollator(cfg, planner, seq, &process.Runner{}, logger)

	argsFile := filepath.Join(root, "rscript_args.txt")
	return collator, argsFile, logBuffer
}

func writeTpmsTable(t *testing.T, c *Collator, sampleId string) {
	t.Helper()
	tpmsFile := c.Planner.SampleOutFile(sampleId, paths.TpmsTsv)
	assert.NoError(t, os.MkdirAll(filepath.Dir(tpmsFile), 0755))
	assert.NoError(t, os.WriteFile(tpmsFile, []byte("ORF\ttpm\nYAL003W\t12.5\n"), 0644))
}

func TestCollatesOnlySamplesWithTpmTables(t *testing.T) {
	root := t.TempDir()
	c, argsFile, logBuffer := testCollator(t, root, `printf '%s\n' "$@" > `+filepath.Join(root, "rscript_args.txt")+"\n")
	writeTpmsTable(t, c, "WTnone")

	assert.NoError(t, c.Collate([]string{"WT3AT", "WTnone"}))

	contents, err := os.ReadFile(argsFile)
	assert.NoError(t, err)
	args := strings.Split(strings.TrimSpace(string(contents)), "\n")
	assert.Equal(t, "--vanilla", args[0])
	assert.Equal(t, filepath.Join(root, "rscripts", "collate_tpms.R"), args[1])
	assert.Equal(t, "--output-dir="+c.Config.Workflow.DirOut, args[2])
	assert.Equal(t, []string{"WTnone"}, args[3:])

	assert.Contains(t, logBuffer.String(), "[WT3AT] no TPM table")
	assert.Contains(t, logBuffer.String(), "excluding from collation")
}

func TestSkipsCollationWhenNoTableSurvived(t *testing.T) {
	c, argsFile, logBuffer := testCollator(t, t.TempDir(), "exit 0\n")

	assert.NoError(t, c.Collate([]string{"WTnone", "WT3AT"}))

	assert.NoFileExists(t, argsFile)
	assert.Contains(t, logBuffer.String(), "no sample produced a TPM table, skipping collation")
}

func TestCollationFailureIsAnError(t *testing.T) {
	c, _, _ := testCollator(t, t.TempDir(), "echo collation blew up\nexit 1\n")
	writeTpmsTable(t, c, "WTnone")

	err := c.Collate([]string{"WTnone"})
	assert.ErrorContains(t, err, "collate_tpms failed with exit code 1")

	logContents, readErr := os.ReadFile(c.Planner.GlobalStageLog("collate_tpms"))
	assert.NoError(t, readErr)
	assert.Contains(t, string(logContents), "collation blew up")
}

func TestDryRunCollatesUnfiltered(t *testing.T) {
	root := t.TempDir()
	c, argsFile, _ := testCollator(t, root, "exit 0\n")
	c.Config.DryRun = true
	c.Process.DryRun = true
	c.Process.CmdFile = filepath.Join(root, "run.sh")

	assert.NoError(t, c.Collate([]string{"WT3AT", "WTnone"}))

	assert.NoFileExists(t, argsFile)
	trace, err := os.ReadFile(c.Process.CmdFile)
	assert.NoError(t, err)
	assert.Contains(t, string(trace), "collate_tpms.R")
	assert.Contains(t, string(trace), "WT3AT WTnone")
}
