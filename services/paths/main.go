package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"riboviz/workflow/models"
	"riboviz/workflow/models/constants"
	"riboviz/workflow/utils"
)

// Per-sample temporary artifacts, named relative to the sample's own
// subdirectory of dir_tmp.
const (
	TrimFq            = "trim.fq"
	ExtractTrimFq     = "extract_trim.fq"
	NonRrnaFq         = "nonrRNA.fq"
	RrnaMapSam        = "rRNA_map.sam"
	OrfMapSam         = "orf_map.sam"
	UnalignedFq       = "unaligned.fq"
	OrfMapCleanSam    = "orf_map_clean.sam"
	Trim5pMismatchTsv = "trim_5p_mismatch.tsv"
	PreDedupBam       = "pre_dedup.bam"
	PreDedupGroupsTsv = "pre_dedup_groups.tsv"
	PostDedupGroups   = "post_dedup_groups.tsv"
	DedupStatsPrefix  = "dedup_stats"
)

// Per-sample outputs, named relative to the sample's own subdirectory
// of dir_out.
const (
	PlusBedgraph  = "plus.bedgraph"
	MinusBedgraph = "minus.bedgraph"
	TpmsTsv       = "tpms.tsv"
)

// Global outputs and the demultiplexer's working layout.
const (
	CollatedTpmsTsv = "TPMs_collated.tsv"
	ReadCountsTsv   = "read_counts.tsv"
	ReportJson      = "workflow_report.json"
	DeplexDirName   = "deplex"
	NumReadsTsv     = "num_reads.tsv"
)

// Planner maps (sample, stage, configuration) to canonical paths. It
// holds no state beyond the configuration and the run timestamp, so
// every path is a pure function of its arguments. All per-sample
// paths live under a subdirectory named after the sample, which keeps
// two distinct samples' path sets disjoint.
type Planner struct {
	Config       *models.Config
	RunTimestamp string
}

func NewPlanner(cfg *models.Config, startTime time.Time) *Planner {
	return &Planner{
		Config:       cfg,
		RunTimestamp: startTime.Format("20060102-150405"),
	}
}

func (p *Planner) SampleTmpDir(sampleId string) string {
	return filepath.Join(p.Config.Workflow.DirTmp, sampleId)
}

func (p *Planner) SampleOutDir(sampleId string) string {
	return filepath.Join(p.Config.Workflow.DirOut, sampleId)
}

func (p *Planner) SampleTmpFile(sampleId string, fileName string) string {
	return filepath.Join(p.SampleTmpDir(sampleId), fileName)
}

func (p *Planner) SampleOutFile(sampleId string, fileName string) string {
	return filepath.Join(p.SampleOutDir(sampleId), fileName)
}

// SampleBam is the final alignment file for a sample. With
// deduplication enabled the sorted pre-dedup alignments stay in the
// sample's temporary directory and only the deduplicated file is
// published to the output tree.
func (p *Planner) SampleBam(sampleId string) string {
	return p.SampleOutFile(sampleId, sampleId+".bam")
}

func (p *Planner) SortedBam(sampleId string) string {
	if p.Config.Workflow.DedupUmis {
		return p.SampleTmpFile(sampleId, PreDedupBam)
	}
	return p.SampleBam(sampleId)
}

func (p *Planner) H5File(sampleId string) string {
	return p.SampleOutFile(sampleId, sampleId+".h5")
}

// Index files.

func (p *Planner) IndexPrefixPath(prefix string) string {
	return filepath.Join(p.Config.Workflow.DirIndex, prefix)
}

func (p *Planner) RrnaIndexPrefixPath() string {
	return p.IndexPrefixPath(p.Config.Workflow.RrnaIndexPrefix)
}

func (p *Planner) OrfIndexPrefixPath() string {
	return p.IndexPrefixPath(p.Config.Workflow.OrfIndexPrefix)
}

// Multiplexed input layout. The shared pre-demultiplexing artifacts
// live under a temporary subdirectory named after the multiplexed
// file, with the demultiplexer's own output below it.

func (p *Planner) MultiplexTmpDir() string {
	stem := utils.StripFastqExtension(filepath.Base(p.Config.Workflow.MultiplexFqFiles))
	return filepath.Join(p.Config.Workflow.DirTmp, stem)
}

func (p *Planner) MultiplexTmpFile(fileName string) string {
	return filepath.Join(p.MultiplexTmpDir(), fileName)
}

func (p *Planner) DeplexDir() string {
	return filepath.Join(p.MultiplexTmpDir(), DeplexDirName)
}

func (p *Planner) DeplexFq(sampleId string) string {
	return filepath.Join(p.DeplexDir(), sampleId+".fastq")
}

func (p *Planner) DeplexManifest() string {
	return filepath.Join(p.DeplexDir(), NumReadsTsv)
}

// Logs. One run-level log file plus one timestamped subdirectory of
// per-stage logs, numbered in execution order and grouped per sample.
// Global steps log at the subdirectory root.

func (p *Planner) RunLogFile() string {
	return filepath.Join(p.Config.Workflow.DirLogs,
		fmt.Sprintf("riboviz-%s.log", p.RunTimestamp))
}

func (p *Planner) LogRoot() string {
	return filepath.Join(p.Config.Workflow.DirLogs, p.RunTimestamp)
}

func (p *Planner) SampleLogDir(sampleId string) string {
	return filepath.Join(p.LogRoot(), sampleId)
}

func (p *Planner) SampleStageLog(sampleId string, stageNumber int, name constants.StageName) string {
	return filepath.Join(p.SampleLogDir(sampleId),
		fmt.Sprintf("%02d_%s.log", stageNumber, name))
}

func (p *Planner) GlobalStageLog(name constants.StageName) string {
	return filepath.Join(p.LogRoot(), fmt.Sprintf("%s.log", name))
}

// Global outputs.

func (p *Planner) CollatedTpmsFile() string {
	return filepath.Join(p.Config.Workflow.DirOut, CollatedTpmsTsv)
}

func (p *Planner) ReadCountsFile() string {
	return filepath.Join(p.Config.Workflow.DirOut, ReadCountsTsv)
}

func (p *Planner) ReportFile() string {
	return filepath.Join(p.Config.Workflow.DirOut, ReportJson)
}

// EnsureDirectories creates the run's directory skeleton.
func (p *Planner) EnsureDirectories() error {
	for _, dir := range []string{
		p.Config.Workflow.DirIndex,
		p.Config.Workflow.DirTmp,
		p.Config.Workflow.DirOut,
		p.Config.Workflow.DirLogs,
		p.LogRoot(),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}
	return nil
}

// EnsureSampleDirectories creates one sample's temporary, output and
// log subdirectories.
func (p *Planner) EnsureSampleDirectories(sampleId string) error {
	for _, dir := range []string{
		p.SampleTmpDir(sampleId),
		p.SampleOutDir(sampleId),
		p.SampleLogDir(sampleId),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
	}
	return nil
}
