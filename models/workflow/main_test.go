package workflow

import (
	"testing"

	. "github.com/ahmetb/go-linq"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"riboviz/workflow/models/constants"
	"riboviz/workflow/models/constants/stage"
)

func TestCanRenderCommandLines(t *testing.T) {
	plain := Stage{Command: []string{"cutadapt", "-a", "CTGTAGGCACC", "-o", "trim.fq"}}
	assert.Equal(t, "cutadapt -a CTGTAGGCACC -o trim.fq", plain.CommandLine())

	piped := Stage{
		Command: []string{"samtools", "view", "-b", "orf_map_clean.sam"},
		PipeTo:  []string{"samtools", "sort", "-o", "WT.bam", "-"},
	}
	assert.Equal(t, "samtools view -b orf_map_clean.sam | samtools sort -o WT.bam -", piped.CommandLine())

	redirected := Stage{
		Command:    []string{"bedtools", "genomecov", "-strand", "+"},
		StdoutFile: "plus.bedgraph",
	}
	assert.Equal(t, "bedtools genomecov -strand + > plus.bedgraph", redirected.CommandLine())
}

func TestTerminalStatuses(t *testing.T) {
	From([]Status{Succeeded, Failed, Cancelled}).ForEachT(func(s Status) {
		assert.True(t, s.Terminal(), string(s))
	})
	From([]Status{Pending, Running}).ForEachT(func(s Status) {
		assert.False(t, s.Terminal(), string(s))
	})
}

func TestNewJobsStartPending(t *testing.T) {
	job := NewSampleJob("WTnone", "vignette/input/WTnone.fastq.gz", []Stage{{Name: stage.Cutadapt}})

	assert.NotEqual(t, uuid.Nil, job.Id)
	assert.Equal(t, "WTnone", job.SampleId)
	assert.Equal(t, Pending, job.Status)
	assert.Empty(t, job.Results)
	assert.False(t, job.Discovered)
	assert.NotEmpty(t, job.CreatedAt)
	assert.Equal(t, job.CreatedAt, job.UpdatedAt)
}

func TestFailedStageNamesTheCulprit(t *testing.T) {
	job := NewSampleJob("WT3AT", "in.fq", nil)
	job.Results = []StageResult{
		{Stage: stage.Cutadapt, ExitCode: 0},
		{Stage: stage.Hisat2Rrna, ExitCode: 1},
	}

	job.Status = Failed
	assert.Equal(t, stage.Hisat2Rrna, job.FailedStage())

	job.Status = Succeeded
	assert.Equal(t, constants.StageName(""), job.FailedStage())
}
