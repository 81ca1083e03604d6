package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"riboviz/workflow/models/constants"
)

type Status string

const (
	Pending   Status = "Pending"
	Running   Status = "Running"
	Succeeded Status = "Succeeded"
	Failed    Status = "Failed"
	Cancelled Status = "Cancelled"
)

// Terminal reports whether a job in this status will never run
// another stage.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed || s == Cancelled
}

// Stage describes one external invocation: a fully resolved argv plus
// the paths the runner and the reconciler need. A stage list is a pure
// function of the configuration, so two identical configurations
// always produce byte-identical plans.
type Stage struct {
	Name    constants.StageName
	Program string

	Command []string
	// PipeTo, when set, receives Command's stdout (a shell pipe).
	PipeTo []string
	// StdoutFile, when set, captures Command's stdout instead of the log.
	StdoutFile string

	// RequiredInput is probed before execution; an absent or empty
	// file skips the stage and the rest of its job.
	RequiredInput string
	Outputs       []string
}

// CommandLine renders the stage as the shell command it stands for.
func (s Stage) CommandLine() string {
	line := strings.Join(s.Command, " ")
	if len(s.PipeTo) > 0 {
		line = line + " | " + strings.Join(s.PipeTo, " ")
	}
	if s.StdoutFile != "" {
		line = line + " > " + s.StdoutFile
	}
	return line
}

// StageResult records one executed (or skipped) stage. Append-only
// once produced.
type StageResult struct {
	Stage       constants.StageName `json:"stage"`
	Description string              `json:"description"`
	ExitCode    int                 `json:"exitCode"`
	LogPath     string              `json:"logPath"`
	Outputs     []string            `json:"outputs"`
	Duration    time.Duration       `json:"duration"`
	Skipped     bool                `json:"skipped"`
}

// SampleJob is one sample's unit of work. The Plan is immutable once
// set; Status and Results are mutated only by the job runner, and a
// job in a terminal status is never touched again.
type SampleJob struct {
	Id         uuid.UUID     `json:"id"`
	SampleId   string        `json:"sampleId"`
	InputPath  string        `json:"inputPath"`
	Plan       []Stage       `json:"-"`
	Status     Status        `json:"status"`
	Results    []StageResult `json:"results"`
	Discovered bool          `json:"discovered"`
	// NumReads is the demultiplexer's manifest count; discovered jobs only.
	NumReads  int    `json:"numReads"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func NewSampleJob(sampleId string, inputPath string, plan []Stage) *SampleJob {
	now := time.Now().String()
	return &SampleJob{
		Id:        uuid.New(),
		SampleId:  sampleId,
		InputPath: inputPath,
		Plan:      plan,
		Status:    Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FailedStage returns the name of the stage that failed the job, or
// an empty name for jobs that did not fail.
func (j *SampleJob) FailedStage() constants.StageName {
	if j.Status != Failed || len(j.Results) == 0 {
		return ""
	}
	return j.Results[len(j.Results)-1].Stage
}
