package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mitchellh/mapstructure"
	yaml "gopkg.in/yaml.v2"
)

// ErrInvalidConfiguration marks configuration problems that are fatal
// before any stage runs.
var ErrInvalidConfiguration = errors.New("invalid configuration")

type Config struct {
	Debug bool `envconfig:"RIBOVIZ_DEBUG"`

	// External tool commands. Overridable per-host so that the
	// workflow document stays portable between machines.
	Tools struct {
		Cutadapt    string `envconfig:"RIBOVIZ_CUTADAPT" default:"cutadapt"`
		UmiTools    string `envconfig:"RIBOVIZ_UMI_TOOLS" default:"umi_tools"`
		Hisat2      string `envconfig:"RIBOVIZ_HISAT2" default:"hisat2"`
		Hisat2Build string `envconfig:"RIBOVIZ_HISAT2_BUILD" default:"hisat2-build"`
		Samtools    string `envconfig:"RIBOVIZ_SAMTOOLS" default:"samtools"`
		Bedtools    string `envconfig:"RIBOVIZ_BEDTOOLS" default:"bedtools"`
		Python      string `envconfig:"RIBOVIZ_PYTHON" default:"python"`
		Rscript     string `envconfig:"RIBOVIZ_RSCRIPT" default:"Rscript"`
	}

	// Directories holding the local helper scripts invoked as stages.
	Scripts struct {
		PyDir string `envconfig:"RIBOVIZ_PY_SCRIPTS" default:"riboviz/tools"`
		RDir  string `envconfig:"RIBOVIZ_R_SCRIPTS" default:"rscripts"`
	}

	// DryRun is set from the command line, not the environment.
	DryRun bool `ignored:"true"`

	Workflow Workflow `ignored:"true"`
}

// Workflow is the experiment-level configuration document, loaded
// once per invocation and immutable afterward.
type Workflow struct {
	DirIndex string `yaml:"dir_index"`
	DirTmp   string `yaml:"dir_tmp"`
	DirOut   string `yaml:"dir_out"`
	DirLogs  string `yaml:"dir_logs"`
	CmdFile  string `yaml:"cmd_file"`

	BuildIndices    bool   `yaml:"build_indices"`
	RrnaFastaFile   string `yaml:"rrna_fasta_file"`
	OrfFastaFile    string `yaml:"orf_fasta_file"`
	RrnaIndexPrefix string `yaml:"rrna_index_prefix"`
	OrfIndexPrefix  string `yaml:"orf_index_prefix"`
	OrfGffFile      string `yaml:"orf_gff_file"`

	// Exactly one input source: a map of sample IDs to FASTQ files,
	// or a single multiplexed FASTQ file plus a sample sheet.
	FqFiles          map[string]string `yaml:"fq_files"`
	MultiplexFqFiles string            `yaml:"multiplex_fq_files"`
	SampleSheet      string            `yaml:"sample_sheet"`

	Adapters         string `yaml:"adapters"`
	ExtractUmis      bool   `yaml:"extract_umis"`
	UmiRegexp        string `yaml:"umi_regexp"`
	DedupUmis        bool   `yaml:"dedup_umis"`
	GroupUmis        bool   `yaml:"group_umis"`
	MakeBedgraph     bool   `yaml:"make_bedgraph"`
	CountReads       bool   `yaml:"count_reads"`
	Trim5pMismatches int    `yaml:"trim_5p_mismatches"`

	NumProcesses int `yaml:"num_processes"`
	NumWorkers   int `yaml:"num_workers"`

	MinReadLength int    `yaml:"min_read_length"`
	MaxReadLength int    `yaml:"max_read_length"`
	Buffer        int    `yaml:"buffer"`
	PrimaryId     string `yaml:"primary_id"`
	SecondaryId   string `yaml:"secondary_id"`
	Dataset       string `yaml:"dataset"`
	StopInCds     bool   `yaml:"stop_in_cds"`
	IsRibovizGff  bool   `yaml:"is_riboviz_gff"`
	Rpf           bool   `yaml:"rpf"`

	TRnaFile            string `yaml:"t_rna_file"`
	CodonPositionsFile  string `yaml:"codon_positions_file"`
	FeaturesFile        string `yaml:"features_file"`
	AsiteDispLengthFile string `yaml:"asite_disp_length_file"`
	CountThreshold      int    `yaml:"count_threshold"`
	DoPosSpNtFreq       bool   `yaml:"do_pos_sp_nt_freq"`
}

// legacyKeys maps 1.x configuration parameter names to their current
// names.
var legacyKeys = map[string]string{
	"rRNA_fasta": "rrna_fasta_file",
	"orf_fasta":  "orf_fasta_file",
	"rRNA_index": "rrna_index_prefix",
	"orf_index":  "orf_index_prefix",
	"nprocesses": "num_processes",
	"MinReadLen": "min_read_length",
	"MaxReadLen": "max_read_length",
	"Buffer":     "buffer",
	"PrimaryID":  "primary_id",
	"SecondID":   "secondary_id",
	"StopInCDS":  "stop_in_cds",
	"isTestRun":  "is_test_run",
	"ribovizGFF": "is_riboviz_gff",
	"t_rna":      "t_rna_file",
	"codon_pos":  "codon_positions_file",
}

// addedKeyDefaults holds parameters introduced after 1.0.0, applied
// only when a document does not set them. These have to be injected
// into the raw map, not the decoded struct, so that an explicit
// `false` survives.
var addedKeyDefaults = map[string]interface{}{
	"do_pos_sp_nt_freq": true,
	"count_reads":       true,
	"count_threshold":   64,
}

// LoadWorkflow reads a workflow configuration document, upgrades any
// legacy parameter names, and validates the result.
func LoadWorkflow(filePath string) (*Workflow, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	defer f.Close()

	rawDocument := map[string]interface{}{}
	if err := yaml.NewDecoder(f).Decode(&rawDocument); err != nil {
		return nil, fmt.Errorf("%w: cannot parse %s: %v", ErrInvalidConfiguration, filePath, err)
	}

	UpgradeWorkflowDocument(rawDocument)

	var workflow Workflow
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		WeaklyTypedInput: true,
		Result:           &workflow,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(rawDocument); err != nil {
		return nil, fmt.Errorf("%w: cannot decode %s: %v", ErrInvalidConfiguration, filePath, err)
	}

	workflow.applyDefaults()

	if err := workflow.Validate(); err != nil {
		return nil, err
	}
	return &workflow, nil
}

// UpgradeWorkflowDocument renames legacy 1.x parameters in a raw
// configuration map and injects defaults for parameters added since.
// Index prefixes are reduced to bare names as they are now resolved
// relative to dir_index.
func UpgradeWorkflowDocument(rawDocument map[string]interface{}) {
	for oldKey, newKey := range legacyKeys {
		if value, ok := rawDocument[oldKey]; ok {
			delete(rawDocument, oldKey)
			rawDocument[newKey] = value
		}
	}

	for key, value := range addedKeyDefaults {
		if _, ok := rawDocument[key]; !ok {
			rawDocument[key] = value
		}
	}

	for _, key := range []string{"rrna_index_prefix", "orf_index_prefix"} {
		if value, ok := rawDocument[key].(string); ok {
			rawDocument[key] = filepath.Base(value)
		}
	}
}

func (w *Workflow) applyDefaults() {
	if w.NumProcesses <= 0 {
		w.NumProcesses = 1
	}
	if w.NumWorkers <= 0 {
		w.NumWorkers = 1
	}
	if w.Trim5pMismatches <= 0 {
		w.Trim5pMismatches = 2
	}
	if w.Buffer <= 0 {
		w.Buffer = 250
	}
	if w.MinReadLength <= 0 {
		w.MinReadLength = 10
	}
	if w.MaxReadLength <= 0 {
		w.MaxReadLength = 50
	}
	if w.PrimaryId == "" {
		w.PrimaryId = "Name"
	}
}

// Validate checks the document for missing or contradictory settings.
// All violations are fatal before any stage runs.
func (w *Workflow) Validate() error {
	for key, value := range map[string]string{
		"dir_index": w.DirIndex,
		"dir_tmp":   w.DirTmp,
		"dir_out":   w.DirOut,
		"dir_logs":  w.DirLogs,
	} {
		if value == "" {
			return fmt.Errorf("%w: %s is not set", ErrInvalidConfiguration, key)
		}
	}

	hasSamples := len(w.FqFiles) > 0
	hasMultiplex := w.MultiplexFqFiles != ""
	if hasSamples == hasMultiplex {
		return fmt.Errorf("%w: exactly one of fq_files and multiplex_fq_files must be set",
			ErrInvalidConfiguration)
	}
	if hasMultiplex && w.SampleSheet == "" {
		return fmt.Errorf("%w: multiplex_fq_files requires sample_sheet", ErrInvalidConfiguration)
	}

	if w.Adapters == "" {
		return fmt.Errorf("%w: adapters is not set", ErrInvalidConfiguration)
	}
	if w.GroupUmis && !w.DedupUmis {
		return fmt.Errorf("%w: group_umis requires dedup_umis", ErrInvalidConfiguration)
	}
	if w.ExtractUmis && w.UmiRegexp == "" {
		return fmt.Errorf("%w: extract_umis requires umi_regexp", ErrInvalidConfiguration)
	}

	if w.RrnaIndexPrefix == "" || w.OrfIndexPrefix == "" {
		return fmt.Errorf("%w: rrna_index_prefix and orf_index_prefix must be set",
			ErrInvalidConfiguration)
	}
	if w.BuildIndices && (w.RrnaFastaFile == "" || w.OrfFastaFile == "") {
		return fmt.Errorf("%w: build_indices requires rrna_fasta_file and orf_fasta_file",
			ErrInvalidConfiguration)
	}
	if w.OrfFastaFile == "" || w.OrfGffFile == "" {
		return fmt.Errorf("%w: orf_fasta_file and orf_gff_file must be set",
			ErrInvalidConfiguration)
	}
	return nil
}

// SampleIds returns the configured sample IDs in a stable order.
func (w *Workflow) SampleIds() []string {
	ids := make([]string, 0, len(w.FqFiles))
	for id := range w.FqFiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
