package samples

import (
	"context"
	"fmt"
	"log"
	"time"

	"riboviz/workflow/models"
	"riboviz/workflow/models/workflow"
	"riboviz/workflow/services/paths"
	"riboviz/workflow/services/process"
	"riboviz/workflow/utils"
)

// JobRunner drives one sample job through its plan, stage by stage,
// and owns all mutation of the job's status and results. Stages run
// strictly in plan order and the first failure ends the job; a
// missing or empty required input retires the rest of the job as a
// skip, not a failure.
type JobRunner struct {
	Config  *models.Config
	Planner *paths.Planner
	Process *process.Runner
	Logger  *log.Logger
}

func NewJobRunner(cfg *models.Config, planner *paths.Planner, runner *process.Runner, logger *log.Logger) *JobRunner {
	return &JobRunner{Config: cfg, Planner: planner, Process: runner, Logger: logger}
}

// RunJob drives the job to a terminal status. Outcomes are recorded
// on the job rather than returned, so one sample's failure never
// interrupts another sample's run. Cancellation is honored between
// stages only; a stage that has started always runs to completion.
func (r *JobRunner) RunJob(ctx context.Context, job *workflow.SampleJob) {
	job.Status = workflow.Running
	job.UpdatedAt = time.Now().String()
	r.Logger.Printf("[%s] starting (%d stages)", job.SampleId, len(job.Plan))

	if err := r.Planner.EnsureSampleDirectories(job.SampleId); err != nil {
		r.fail(job, workflow.StageResult{Description: err.Error(), ExitCode: -1})
		r.Logger.Printf("[%s] failed: %v", job.SampleId, err)
		return
	}

	for i, st := range job.Plan {
		select {
		case <-ctx.Done():
			job.Status = workflow.Cancelled
			job.UpdatedAt = time.Now().String()
			r.Logger.Printf("[%s] cancelled after %d of %d stages", job.SampleId, i, len(job.Plan))
			return
		default:
		}

		if !r.Config.DryRun && st.RequiredInput != "" && !utils.FileNonEmpty(st.RequiredInput) {
			job.Results = append(job.Results, workflow.StageResult{
				Stage:       st.Name,
				Description: fmt.Sprintf("input %s is missing or empty", st.RequiredInput),
				Skipped:     true,
			})
			job.Status = workflow.Succeeded
			job.UpdatedAt = time.Now().String()
			r.Logger.Printf("[%s] %s: input %s is missing or empty, skipping remaining stages",
				job.SampleId, st.Name, st.RequiredInput)
			return
		}

		logPath := r.Planner.SampleStageLog(job.SampleId, i+1, st.Name)
		r.Logger.Printf("[%s] %s", job.SampleId, st.CommandLine())

		result, err := r.Process.RunStage(st, logPath)
		stageResult := workflow.StageResult{
			Stage:       st.Name,
			Description: st.CommandLine(),
			ExitCode:    result.ExitCode,
			LogPath:     logPath,
			Outputs:     st.Outputs,
			Duration:    result.Duration,
		}
		if err != nil || result.ExitCode != 0 {
			r.fail(job, stageResult)
			r.Logger.Printf("[%s] %s failed with exit code %d, see %s",
				job.SampleId, st.Name, result.ExitCode, logPath)
			return
		}

		job.Results = append(job.Results, stageResult)
		job.UpdatedAt = time.Now().String()
	}

	job.Status = workflow.Succeeded
	job.UpdatedAt = time.Now().String()
	r.Logger.Printf("[%s] finished", job.SampleId)
}

func (r *JobRunner) fail(job *workflow.SampleJob, result workflow.StageResult) {
	job.Results = append(job.Results, result)
	job.Status = workflow.Failed
	job.UpdatedAt = time.Now().String()
}
