package demultiplex

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"riboviz/workflow/models"
	sampleSheet "riboviz/workflow/models/constants/sample-sheet"
	"riboviz/workflow/models/workflow"
	"riboviz/workflow/repositories/artifacts"
	"riboviz/workflow/services/paths"
	"riboviz/workflow/services/process"
	"riboviz/workflow/services/sequencer"
	"riboviz/workflow/utils"
)

// The demultiplexer writes its manifest last, just before exiting;
// the wait only covers filesystem latency.
const manifestWait = 5 * time.Second

// Discovery runs the shared pre-demultiplexing phase and turns the
// demultiplexer's manifest into sample jobs. Until that manifest
// exists the sample population is unknown.
type Discovery struct {
	Config    *models.Config
	Planner   *paths.Planner
	Sequencer *sequencer.Sequencer
	Process   *process.Runner
	Logger    *log.Logger
}

func NewDiscovery(cfg *models.Config, planner *paths.Planner, seq *sequencer.Sequencer, runner *process.Runner, logger *log.Logger) *Discovery {
	return &Discovery{Config: cfg, Planner: planner, Sequencer: seq, Process: runner, Logger: logger}
}

// ValidateSampleSheet parses the sample sheet and rejects sheets the
// demultiplexer would choke on: missing columns, no rows, or two rows
// claiming the same sample name.
func (d *Discovery) ValidateSampleSheet() error {
	sheetPath := d.Config.Workflow.SampleSheet
	rows, err := artifacts.ReadSampleSheet(sheetPath)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("sample sheet %s names no samples", sheetPath)
	}

	seen := map[string]bool{}
	for _, row := range rows {
		if seen[row.SampleId] {
			return fmt.Errorf("sample sheet %s names sample %s twice", sheetPath, row.SampleId)
		}
		seen[row.SampleId] = true
	}
	return nil
}

// Run executes the shared stages up to and including the
// demultiplexer, then reads its manifest and builds one job per
// sample that received reads. Failures here are global: there are no
// per-sample jobs yet to absorb them.
func (d *Discovery) Run(ctx context.Context) ([]*workflow.SampleJob, error) {
	for _, dir := range []string{d.Planner.MultiplexTmpDir(), d.Planner.DeplexDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}

	for _, st := range d.Sequencer.MultiplexPlan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		logPath := d.Planner.GlobalStageLog(st.Name)
		d.Logger.Printf("[%s] %s", st.Name, st.CommandLine())
		result, err := d.Process.RunStage(st, logPath)
		if err != nil || result.ExitCode != 0 {
			return nil, fmt.Errorf("%s failed with exit code %d, see %s", st.Name, result.ExitCode, logPath)
		}
	}

	if d.Config.DryRun {
		d.Logger.Printf("dry run, skipping sample discovery")
		return nil, nil
	}

	manifest := d.Planner.DeplexManifest()
	if err := utils.AwaitFile(manifest, manifestWait); err != nil {
		return nil, fmt.Errorf("demultiplexing left no manifest at %s: %w", manifest, err)
	}
	rows, err := artifacts.ReadManifest(manifest)
	if err != nil {
		return nil, err
	}

	var jobs []*workflow.SampleJob
	for _, row := range rows {
		if utils.StringInSlice(row.SampleId, []string{sampleSheet.UnassignedTag, sampleSheet.TotalRow}) {
			continue
		}
		if row.NumReads <= 0 {
			d.Logger.Printf("[%s] received no reads, nothing to do", row.SampleId)
			continue
		}

		job := workflow.NewSampleJob(row.SampleId, d.Planner.DeplexFq(row.SampleId),
			d.Sequencer.DiscoveredSamplePlan(row.SampleId))
		job.Discovered = true
		job.NumReads = row.NumReads
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("demultiplexing assigned no reads to any sample in %s", manifest)
	}
	return jobs, nil
}
