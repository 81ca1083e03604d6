package readcounts

import (
	"encoding/csv"
	"log"
	"path/filepath"
	"strconv"

	"riboviz/workflow/models"
	sampleSheet "riboviz/workflow/models/constants/sample-sheet"
	"riboviz/workflow/repositories/artifacts"
	"riboviz/workflow/services/paths"
	"riboviz/workflow/utils"
)

// Record is one row of the read-count table: how many reads one file
// held when a given program was done with it.
type Record struct {
	SampleName  string
	Program     string
	File        string
	NumReads    int
	Description string
}

// Reconciler rebuilds the story of the run's reads from the files on
// disk. It consults artifacts, not job state: a count is only
// reported for a file that actually exists, and a tool's own summary
// is trusted over recounting the artifact it describes.
type Reconciler struct {
	Config  *models.Config
	Planner *paths.Planner
	Logger  *log.Logger
}

func NewReconciler(cfg *models.Config, planner *paths.Planner, logger *log.Logger) *Reconciler {
	return &Reconciler{Config: cfg, Planner: planner, Logger: logger}
}

// Scan walks the run's layout and collects one record per surviving
// artifact, in processing order. Samples appear in sorted order for
// configured inputs and in manifest order for demultiplexed ones.
func (r *Reconciler) Scan() []Record {
	w := &r.Config.Workflow
	var records []Record

	if w.MultiplexFqFiles != "" {
		records = r.scanMultiplex(records)
	} else {
		for _, sampleId := range w.SampleIds() {
			records = r.appendRecord(records, sampleId, "input", w.FqFiles[sampleId], "input reads")
			records = r.scanTrimming(records, sampleId,
				r.Planner.SampleTmpFile(sampleId, paths.TrimFq),
				r.Planner.SampleTmpFile(sampleId, paths.ExtractTrimFq))
			records = r.scanAlignment(records, sampleId)
		}
	}

	return records
}

// Write renders Scan's records as a tab-separated table under
// dir_out.
func (r *Reconciler) Write() error {
	records := r.Scan()

	outFile, err := utils.CreateAndGetNewFile(r.Planner.ReadCountsFile())
	if err != nil {
		return err
	}
	defer outFile.Close()

	writer := csv.NewWriter(outFile)
	writer.Comma = '\t'

	rows := [][]string{{"SampleName", "Program", "File", "NumReads", "Description"}}
	for _, record := range records {
		rows = append(rows, []string{
			record.SampleName, record.Program, record.File,
			strconv.Itoa(record.NumReads), record.Description,
		})
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func (r *Reconciler) scanMultiplex(records []Record) []Record {
	w := &r.Config.Workflow
	stem := utils.StripFastqExtension(filepath.Base(w.MultiplexFqFiles))

	records = r.appendRecord(records, stem, "input", w.MultiplexFqFiles, "multiplexed input reads")
	records = r.scanTrimming(records, stem,
		r.Planner.MultiplexTmpFile(paths.TrimFq),
		r.Planner.MultiplexTmpFile(paths.ExtractTrimFq))

	manifest := r.Planner.DeplexManifest()
	if !utils.FileExists(manifest) {
		r.Logger.Printf("no demultiplexing manifest at %s, stopping the count there", manifest)
		return records
	}
	rows, err := artifacts.ReadManifest(manifest)
	if err != nil {
		r.Logger.Printf("cannot read %s: %v", manifest, err)
		return records
	}

	for _, row := range rows {
		if row.SampleId == sampleSheet.TotalRow {
			continue
		}
		records = append(records, Record{
			SampleName:  row.SampleId,
			Program:     "demultiplex_fastq",
			File:        r.Planner.DeplexFq(row.SampleId),
			NumReads:    row.NumReads,
			Description: "reads demultiplexed to sample",
		})
	}
	for _, row := range rows {
		if utils.StringInSlice(row.SampleId, []string{sampleSheet.UnassignedTag, sampleSheet.TotalRow}) || row.NumReads <= 0 {
			continue
		}
		records = r.scanAlignment(records, row.SampleId)
	}
	return records
}

func (r *Reconciler) scanTrimming(records []Record, sampleName string, trimFq string, extractFq string) []Record {
	records = r.appendRecord(records, sampleName, "cutadapt", trimFq,
		"reads after adapter trimming")
	if r.Config.Workflow.ExtractUmis {
		records = r.appendRecord(records, sampleName, "umi_tools extract", extractFq,
			"reads after UMI extraction")
	}
	return records
}

func (r *Reconciler) scanAlignment(records []Record, sampleId string) []Record {
	w := &r.Config.Workflow

	records = r.appendRecord(records, sampleId, "hisat2",
		r.Planner.SampleTmpFile(sampleId, paths.NonRrnaFq), "reads that did not align to rRNA")
	records = r.appendRecord(records, sampleId, "hisat2",
		r.Planner.SampleTmpFile(sampleId, paths.RrnaMapSam), "alignments to rRNA")
	records = r.appendRecord(records, sampleId, "hisat2",
		r.Planner.SampleTmpFile(sampleId, paths.OrfMapSam), "alignments to ORFs")
	records = r.appendRecord(records, sampleId, "hisat2",
		r.Planner.SampleTmpFile(sampleId, paths.UnalignedFq), "reads that did not align to ORFs")
	records = r.appendTrimmed(records, sampleId)
	records = r.appendRecord(records, sampleId, "samtools",
		r.Planner.SortedBam(sampleId), "sorted alignments")
	if w.DedupUmis {
		records = r.appendRecord(records, sampleId, "umi_tools dedup",
			r.Planner.SampleBam(sampleId), "deduplicated alignments")
	}
	return records
}

// appendTrimmed prefers the mismatch trimmer's own tally of written
// reads; recounting the SAM is the fallback. When neither the
// summary nor the artifact survives there is nothing to reconcile
// against, which deserves a warning rather than silence.
func (r *Reconciler) appendTrimmed(records []Record, sampleId string) []Record {
	cleanSam := r.Planner.SampleTmpFile(sampleId, paths.OrfMapCleanSam)
	summaryTsv := r.Planner.SampleTmpFile(sampleId, paths.Trim5pMismatchTsv)
	description := "alignments after 5' mismatch trimming"

	if utils.FileExists(summaryTsv) {
		summary := artifacts.SummaryFile{FilePath: summaryTsv}
		if numReads, err := summary.IntColumn("num_written"); err == nil {
			return append(records, Record{
				SampleName:  sampleId,
				Program:     "trim_5p_mismatch",
				File:        cleanSam,
				NumReads:    numReads,
				Description: description,
			})
		} else {
			r.Logger.Printf("[%s] cannot read %s: %v", sampleId, summaryTsv, err)
		}
	}
	if utils.FileExists(cleanSam) {
		return r.appendRecord(records, sampleId, "trim_5p_mismatch", cleanSam, description)
	}
	if r.chainStarted(sampleId) {
		r.Logger.Printf("[%s] neither %s nor %s exists, no count for %s",
			sampleId, summaryTsv, cleanSam, "trim_5p_mismatch")
	}
	return records
}

// chainStarted reports whether the sample produced any alignment
// artifacts at all. Samples skipped for empty input leave nothing,
// and get no gap warnings.
func (r *Reconciler) chainStarted(sampleId string) bool {
	return utils.FileExists(r.Planner.SampleTmpFile(sampleId, paths.OrfMapSam))
}

func (r *Reconciler) appendRecord(records []Record, sampleName string, program string, filePath string, description string) []Record {
	if !utils.FileExists(filePath) {
		return records
	}

	countable, err := artifacts.ForFile(filePath, r.Config.Tools.Samtools)
	if err != nil {
		r.Logger.Printf("[%s] %v", sampleName, err)
		return records
	}
	numReads, err := countable.Count()
	if err != nil {
		r.Logger.Printf("[%s] cannot count %s: %v", sampleName, filePath, err)
		return records
	}

	return append(records, Record{
		SampleName:  sampleName,
		Program:     program,
		File:        filePath,
		NumReads:    numReads,
		Description: description,
	})
}
