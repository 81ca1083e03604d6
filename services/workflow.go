package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jeffail/gabs"
	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"riboviz/workflow/models"
	"riboviz/workflow/models/workflow"
	"riboviz/workflow/services/collate"
	"riboviz/workflow/services/demultiplex"
	"riboviz/workflow/services/paths"
	"riboviz/workflow/services/process"
	"riboviz/workflow/services/readcounts"
	"riboviz/workflow/services/samples"
	"riboviz/workflow/services/sequencer"
	"riboviz/workflow/utils"
)

const progressIntervalSeconds = 30

type (
	// WorkflowService owns a whole run: index building, sample jobs,
	// TPM collation, read-count reconciliation and the final report.
	// Sample jobs run concurrently under a worker limit; everything
	// else is sequential.
	WorkflowService struct {
		Config     *models.Config
		Planner    *paths.Planner
		Sequencer  *sequencer.Sequencer
		Process    *process.Runner
		Samples    *samples.JobRunner
		Discovery  *demultiplex.Discovery
		Collator   *collate.Collator
		Reconciler *readcounts.Reconciler
		Logger     *log.Logger

		JobMap    map[string]*workflow.SampleJob
		JobMapMux sync.RWMutex

		settledJobs int64
	}
)

// NewWorkflowService creates the run's directory skeleton and wires
// every collaborator around one shared logger, which tees to stdout
// and the timestamped run log.
func NewWorkflowService(cfg *models.Config) (*WorkflowService, error) {
	planner := paths.NewPlanner(cfg, time.Now())
	if err := planner.EnsureDirectories(); err != nil {
		return nil, err
	}

	runLogFile, err := utils.CreateAndGetNewFile(planner.RunLogFile())
	if err != nil {
		return nil, err
	}
	logger := log.New(io.MultiWriter(os.Stdout, runLogFile), "", log.LstdFlags)

	runner := &process.Runner{CmdFile: cfg.Workflow.CmdFile, DryRun: cfg.DryRun}
	seq := sequencer.NewSequencer(cfg, planner)

	return &WorkflowService{
		Config:     cfg,
		Planner:    planner,
		Sequencer:  seq,
		Process:    runner,
		Samples:    samples.NewJobRunner(cfg, planner, runner, logger),
		Discovery:  demultiplex.NewDiscovery(cfg, planner, seq, runner, logger),
		Collator:   collate.NewCollator(cfg, planner, seq, runner, logger),
		Reconciler: readcounts.NewReconciler(cfg, planner, logger),
		Logger:     logger,
		JobMap:     map[string]*workflow.SampleJob{},
		JobMapMux:  sync.RWMutex{},
	}, nil
}

// Run drives the whole workflow and returns the process exit code:
// zero only when index building and collation succeeded and no
// sample job failed. Read-count problems are reported but do not
// change the exit code.
func (s *WorkflowService) Run(ctx context.Context) int {
	w := &s.Config.Workflow

	if w.BuildIndices {
		for _, st := range s.Sequencer.IndexPlan() {
			if ctx.Err() != nil {
				return s.abort("run cancelled before index building finished")
			}
			if err := s.runGlobal(st); err != nil {
				return s.abort(fmt.Sprintf("index building failed: %v", err))
			}
		}
	}

	jobs, err := s.buildJobs(ctx)
	if err != nil {
		return s.abort(err.Error())
	}
	s.registerJobs(jobs)

	total := len(jobs)
	s.Logger.Printf("processing %d samples with %d workers", total, w.NumWorkers)

	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(progressIntervalSeconds).Seconds().Do(func() {
		s.Logger.Printf("%d of %d samples settled", atomic.LoadInt64(&s.settledJobs), total)
	})
	scheduler.StartAsync()

	var g errgroup.Group
	g.SetLimit(w.NumWorkers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			s.Samples.RunJob(ctx, job)
			atomic.AddInt64(&s.settledJobs, 1)
			return nil
		})
	}
	g.Wait()
	scheduler.Stop()

	if ctx.Err() != nil {
		return s.abort(fmt.Sprintf("run cancelled, %d of %d samples settled",
			atomic.LoadInt64(&s.settledJobs), total))
	}

	collationErr := s.Collator.Collate(s.sampleIdsWithStatus(workflow.Succeeded))
	if collationErr != nil {
		s.Logger.Printf("%v", collationErr)
	}

	if w.CountReads {
		if s.Config.DryRun {
			s.Logger.Printf("dry run, skipping read counts")
		} else if err := s.Reconciler.Write(); err != nil {
			s.Logger.Printf("cannot write read counts: %v", err)
		} else {
			s.Logger.Printf("read counts written to %s", s.Planner.ReadCountsFile())
		}
	}

	code := 0
	if failed := s.sampleIdsWithStatus(workflow.Failed); len(failed) > 0 {
		s.Logger.Printf("%d of %d samples failed: %s", len(failed), total, strings.Join(failed, ", "))
		code = 1
	}
	if collationErr != nil {
		code = 1
	}

	s.writeReport(code, collationErr == nil)
	s.Logger.Printf("finished with exit code %d, full log at %s", code, s.Planner.RunLogFile())
	return code
}

// buildJobs resolves the run's sample population: directly from the
// configuration, or by demultiplexing a multiplexed file first.
func (s *WorkflowService) buildJobs(ctx context.Context) ([]*workflow.SampleJob, error) {
	w := &s.Config.Workflow

	if w.MultiplexFqFiles != "" {
		if err := s.Discovery.ValidateSampleSheet(); err != nil {
			return nil, err
		}
		return s.Discovery.Run(ctx)
	}

	var jobs []*workflow.SampleJob
	for _, sampleId := range w.SampleIds() {
		inputPath := w.FqFiles[sampleId]
		jobs = append(jobs, workflow.NewSampleJob(sampleId, inputPath,
			s.Sequencer.SamplePlan(sampleId, inputPath)))
	}
	return jobs, nil
}

func (s *WorkflowService) registerJobs(jobs []*workflow.SampleJob) {
	s.JobMapMux.Lock()
	defer s.JobMapMux.Unlock()
	for _, job := range jobs {
		s.JobMap[job.SampleId] = job
	}
}

func (s *WorkflowService) sampleIdsWithStatus(status workflow.Status) []string {
	s.JobMapMux.RLock()
	defer s.JobMapMux.RUnlock()

	var sampleIds []string
	for sampleId, job := range s.JobMap {
		if job.Status == status {
			sampleIds = append(sampleIds, sampleId)
		}
	}
	sort.Strings(sampleIds)
	return sampleIds
}

func (s *WorkflowService) runGlobal(st workflow.Stage) error {
	logPath := s.Planner.GlobalStageLog(st.Name)
	s.Logger.Printf("[%s] %s", st.Name, st.CommandLine())

	result, err := s.Process.RunStage(st, logPath)
	if err != nil || result.ExitCode != 0 {
		return fmt.Errorf("%s failed with exit code %d, see %s", st.Name, result.ExitCode, logPath)
	}
	return nil
}

func (s *WorkflowService) abort(reason string) int {
	s.Logger.Printf("%s", reason)
	s.writeReport(1, false)
	return 1
}

// writeReport renders the run's outcome, job by job, as an indented
// JSON document under dir_out.
func (s *WorkflowService) writeReport(exitCode int, collated bool) {
	report := gabs.New()
	report.Set(s.Planner.RunTimestamp, "run", "timestamp")
	report.Set(s.Config.Workflow.Dataset, "run", "dataset")
	report.Set(s.Config.DryRun, "run", "dryRun")
	report.Set(exitCode, "run", "exitCode")
	report.Set(collated, "run", "tpmsCollated")
	report.Array("samples")

	s.JobMapMux.RLock()
	sampleIds := make([]string, 0, len(s.JobMap))
	for sampleId := range s.JobMap {
		sampleIds = append(sampleIds, sampleId)
	}
	sort.Strings(sampleIds)
	for _, sampleId := range sampleIds {
		jobJson, err := json.Marshal(s.JobMap[sampleId])
		if err != nil {
			continue
		}
		parsed, err := gabs.ParseJSON(jobJson)
		if err != nil {
			continue
		}
		report.ArrayAppend(parsed.Data(), "samples")
	}
	s.JobMapMux.RUnlock()

	reportPath := s.Planner.ReportFile()
	if err := ioutil.WriteFile(reportPath, []byte(report.StringIndent("", "  ")), 0644); err != nil {
		s.Logger.Printf("cannot write %s: %v", reportPath, err)
	}
}
