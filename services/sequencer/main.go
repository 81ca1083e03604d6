package sequencer

import (
	"path/filepath"
	"strconv"

	"riboviz/workflow/models"
	"riboviz/workflow/models/constants"
	"riboviz/workflow/models/constants/stage"
	"riboviz/workflow/models/workflow"
	"riboviz/workflow/services/paths"
	"riboviz/workflow/utils"
)

// Mismatches allowed between a read's barcode and a sample sheet
// barcode during demultiplexing.
const deplexMismatches = 2

// Sequencer turns the configuration into ordered stage plans. Each
// boolean flag contributes zero or more stages at its fixed place in
// the base order; no other branching exists, so identical
// configurations always yield byte-identical plans.
type Sequencer struct {
	Config  *models.Config
	Planner *paths.Planner
}

func NewSequencer(cfg *models.Config, planner *paths.Planner) *Sequencer {
	return &Sequencer{Config: cfg, Planner: planner}
}

// SamplePlan is the full stage chain for a statically configured
// sample: adapter trimming, optional UMI extraction, then the
// alignment chain.
func (s *Sequencer) SamplePlan(sampleId string, inputPath string) []workflow.Stage {
	trimFq := s.Planner.SampleTmpFile(sampleId, paths.TrimFq)

	stages := []workflow.Stage{s.cutadaptStage(inputPath, trimFq)}
	alignInput := trimFq
	if s.Config.Workflow.ExtractUmis {
		extractFq := s.Planner.SampleTmpFile(sampleId, paths.ExtractTrimFq)
		stages = append(stages, s.extractUmisStage(trimFq, extractFq))
		alignInput = extractFq
	}
	return append(stages, s.AlignmentStages(sampleId, alignInput)...)
}

// DiscoveredSamplePlan is the stage chain for a sample discovered by
// demultiplexing. Adapter trimming and UMI extraction already ran on
// the shared multiplexed file, so the chain starts at rRNA filtering,
// reading the sample's demultiplexed FASTQ.
func (s *Sequencer) DiscoveredSamplePlan(sampleId string) []workflow.Stage {
	return s.AlignmentStages(sampleId, s.Planner.DeplexFq(sampleId))
}

// MultiplexPlan is the shared pre-demultiplexing phase, run once:
// adapter trimming, optional UMI extraction, then the demultiplexer.
func (s *Sequencer) MultiplexPlan() []workflow.Stage {
	w := &s.Config.Workflow
	trimFq := s.Planner.MultiplexTmpFile(paths.TrimFq)

	stages := []workflow.Stage{s.cutadaptStage(w.MultiplexFqFiles, trimFq)}
	deplexInput := trimFq
	if w.ExtractUmis {
		extractFq := s.Planner.MultiplexTmpFile(paths.ExtractTrimFq)
		stages = append(stages, s.extractUmisStage(trimFq, extractFq))
		deplexInput = extractFq
	}

	return append(stages, workflow.Stage{
		Name:    stage.DemultiplexFastq,
		Program: "demultiplex_fastq",
		Command: []string{
			s.Config.Tools.Python,
			filepath.Join(s.Config.Scripts.PyDir, "demultiplex_fastq.py"),
			"-1", deplexInput,
			"-ss", w.SampleSheet,
			"-o", s.Planner.DeplexDir(),
			"-m", strconv.Itoa(deplexMismatches),
		},
		RequiredInput: deplexInput,
		Outputs:       []string{s.Planner.DeplexManifest()},
	})
}

// IndexPlan builds the two hisat2 index-construction stages. These
// are global: their failure is fatal to the whole run.
func (s *Sequencer) IndexPlan() []workflow.Stage {
	w := &s.Config.Workflow
	return []workflow.Stage{
		{
			Name:    stage.BuildIndexRrna,
			Program: "hisat2-build",
			Command: []string{
				s.Config.Tools.Hisat2Build, w.RrnaFastaFile, s.Planner.RrnaIndexPrefixPath(),
			},
			RequiredInput: w.RrnaFastaFile,
			Outputs:       []string{s.Planner.RrnaIndexPrefixPath() + ".1.ht2"},
		},
		{
			Name:    stage.BuildIndexOrf,
			Program: "hisat2-build",
			Command: []string{
				s.Config.Tools.Hisat2Build, w.OrfFastaFile, s.Planner.OrfIndexPrefixPath(),
			},
			RequiredInput: w.OrfFastaFile,
			Outputs:       []string{s.Planner.OrfIndexPrefixPath() + ".1.ht2"},
		},
	}
}

// CollateStage merges the named samples' TPM tables into one
// cross-sample table under dir_out.
func (s *Sequencer) CollateStage(sampleIds []string) workflow.Stage {
	command := []string{
		s.Config.Tools.Rscript, "--vanilla",
		filepath.Join(s.Config.Scripts.RDir, "collate_tpms.R"),
		"--output-dir=" + s.Config.Workflow.DirOut,
	}
	command = append(command, sampleIds...)

	return workflow.Stage{
		Name:    stage.CollateTpms,
		Program: "collate_tpms",
		Command: command,
		Outputs: []string{s.Planner.CollatedTpmsFile()},
	}
}

// AlignmentStages is the chain every sample runs after its reads are
// trimmed (and demultiplexed, for multiplexed inputs): rRNA
// filtering, ORF alignment, 5' mismatch trimming, BAM preparation,
// the optional UMI and bedgraph blocks, then the two unconditional
// analysis stages.
func (s *Sequencer) AlignmentStages(sampleId string, alignInput string) []workflow.Stage {
	w := &s.Config.Workflow
	numProcesses := strconv.Itoa(w.NumProcesses)

	nonRrnaFq := s.Planner.SampleTmpFile(sampleId, paths.NonRrnaFq)
	rrnaMapSam := s.Planner.SampleTmpFile(sampleId, paths.RrnaMapSam)
	orfMapSam := s.Planner.SampleTmpFile(sampleId, paths.OrfMapSam)
	unalignedFq := s.Planner.SampleTmpFile(sampleId, paths.UnalignedFq)
	orfMapCleanSam := s.Planner.SampleTmpFile(sampleId, paths.OrfMapCleanSam)
	trimSummaryTsv := s.Planner.SampleTmpFile(sampleId, paths.Trim5pMismatchTsv)
	sortedBam := s.Planner.SortedBam(sampleId)
	sampleBam := s.Planner.SampleBam(sampleId)
	h5File := s.Planner.H5File(sampleId)

	stages := []workflow.Stage{
		{
			Name:    stage.Hisat2Rrna,
			Program: "hisat2",
			Command: []string{
				s.Config.Tools.Hisat2,
				"-p", numProcesses,
				"-N", "1", "-k", "1",
				"--un", nonRrnaFq,
				"-x", s.Planner.RrnaIndexPrefixPath(),
				"-S", rrnaMapSam,
				"-U", alignInput,
			},
			RequiredInput: alignInput,
			Outputs:       []string{nonRrnaFq, rrnaMapSam},
		},
		{
			Name:    stage.Hisat2Orf,
			Program: "hisat2",
			Command: []string{
				s.Config.Tools.Hisat2,
				"-p", numProcesses,
				"-k", "2",
				"--no-spliced-alignment",
				"--rna-strandness", "F",
				"--no-unal",
				"--un", unalignedFq,
				"-x", s.Planner.OrfIndexPrefixPath(),
				"-S", orfMapSam,
				"-U", nonRrnaFq,
			},
			RequiredInput: nonRrnaFq,
			Outputs:       []string{orfMapSam, unalignedFq},
		},
		{
			Name:    stage.Trim5pMismatch,
			Program: "trim_5p_mismatch",
			Command: []string{
				s.Config.Tools.Python,
				filepath.Join(s.Config.Scripts.PyDir, "trim_5p_mismatch.py"),
				"-mm", strconv.Itoa(w.Trim5pMismatches),
				"-in", orfMapSam,
				"-out", orfMapCleanSam,
				"-s", trimSummaryTsv,
			},
			RequiredInput: orfMapSam,
			Outputs:       []string{orfMapCleanSam, trimSummaryTsv},
		},
		{
			Name:    stage.SamtoolsViewSort,
			Program: "samtools",
			Command: []string{s.Config.Tools.Samtools, "view", "-b", orfMapCleanSam},
			PipeTo: []string{
				s.Config.Tools.Samtools, "sort",
				"-@", numProcesses,
				"-O", "bam",
				"-o", sortedBam,
				"-",
			},
			RequiredInput: orfMapCleanSam,
			Outputs:       []string{sortedBam},
		},
		{
			Name:          stage.SamtoolsIndex,
			Program:       "samtools",
			Command:       []string{s.Config.Tools.Samtools, "index", sortedBam},
			RequiredInput: sortedBam,
			Outputs:       []string{sortedBam + ".bai"},
		},
	}

	if w.DedupUmis {
		if w.GroupUmis {
			preGroupsTsv := s.Planner.SampleTmpFile(sampleId, paths.PreDedupGroupsTsv)
			stages = append(stages, workflow.Stage{
				Name:    stage.GroupUmisBeforeDedup,
				Program: "umi_tools",
				Command: []string{
					s.Config.Tools.UmiTools, "group",
					"-I", sortedBam,
					"--group-out", preGroupsTsv,
				},
				RequiredInput: sortedBam,
				Outputs:       []string{preGroupsTsv},
			})
		}

		stages = append(stages,
			workflow.Stage{
				Name:    stage.DedupUmis,
				Program: "umi_tools",
				Command: []string{
					s.Config.Tools.UmiTools, "dedup",
					"-I", sortedBam,
					"-S", sampleBam,
					"--output-stats=" + s.Planner.SampleTmpFile(sampleId, paths.DedupStatsPrefix),
				},
				RequiredInput: sortedBam,
				Outputs:       []string{sampleBam},
			},
			workflow.Stage{
				Name:          stage.SamtoolsIndex,
				Program:       "samtools",
				Command:       []string{s.Config.Tools.Samtools, "index", sampleBam},
				RequiredInput: sampleBam,
				Outputs:       []string{sampleBam + ".bai"},
			})

		if w.GroupUmis {
			postGroupsTsv := s.Planner.SampleTmpFile(sampleId, paths.PostDedupGroups)
			stages = append(stages, workflow.Stage{
				Name:    stage.GroupUmisAfterDedup,
				Program: "umi_tools",
				Command: []string{
					s.Config.Tools.UmiTools, "group",
					"-I", sampleBam,
					"--group-out", postGroupsTsv,
				},
				RequiredInput: sampleBam,
				Outputs:       []string{postGroupsTsv},
			})
		}
	}

	if w.MakeBedgraph {
		stages = append(stages,
			s.bedgraphStage(stage.BedgraphPlus, sampleBam, "+",
				s.Planner.SampleOutFile(sampleId, paths.PlusBedgraph)),
			s.bedgraphStage(stage.BedgraphMinus, sampleBam, "-",
				s.Planner.SampleOutFile(sampleId, paths.MinusBedgraph)))
	}

	return append(stages,
		s.bamToH5Stage(sampleBam, h5File),
		s.generateStatsFigsStage(sampleId, h5File))
}

func (s *Sequencer) cutadaptStage(inputPath string, trimFq string) workflow.Stage {
	w := &s.Config.Workflow
	return workflow.Stage{
		Name:    stage.Cutadapt,
		Program: "cutadapt",
		Command: []string{
			s.Config.Tools.Cutadapt,
			"--trim-n",
			"-O", "1",
			"-m", "5",
			"-a", w.Adapters,
			"-o", trimFq,
			inputPath,
			"-j", strconv.Itoa(w.NumProcesses),
		},
		RequiredInput: inputPath,
		Outputs:       []string{trimFq},
	}
}

func (s *Sequencer) extractUmisStage(trimFq string, extractFq string) workflow.Stage {
	return workflow.Stage{
		Name:    stage.ExtractUmis,
		Program: "umi_tools",
		Command: []string{
			s.Config.Tools.UmiTools, "extract",
			"-I", trimFq,
			"--bc-pattern=" + s.Config.Workflow.UmiRegexp,
			"--extract-method=regex",
			"-S", extractFq,
		},
		RequiredInput: trimFq,
		Outputs:       []string{extractFq},
	}
}

func (s *Sequencer) bedgraphStage(name constants.StageName, bamFile string, strand string, bedgraphFile string) workflow.Stage {
	return workflow.Stage{
		Name:    name,
		Program: "bedtools",
		Command: []string{
			s.Config.Tools.Bedtools, "genomecov",
			"-ibam", bamFile,
			"-trackline",
			"-bga",
			"-5",
			"-strand", strand,
		},
		StdoutFile:    bedgraphFile,
		RequiredInput: bamFile,
		Outputs:       []string{bedgraphFile},
	}
}

func (s *Sequencer) bamToH5Stage(bamFile string, h5File string) workflow.Stage {
	w := &s.Config.Workflow

	secondaryId := w.SecondaryId
	if secondaryId == "" {
		secondaryId = "NULL"
	}

	return workflow.Stage{
		Name:    stage.BamToH5,
		Program: "bam_to_h5",
		Command: []string{
			s.Config.Tools.Rscript, "--vanilla",
			filepath.Join(s.Config.Scripts.RDir, "bam_to_h5.R"),
			"--Ncores=" + strconv.Itoa(w.NumProcesses),
			"--MinReadLen=" + strconv.Itoa(w.MinReadLength),
			"--MaxReadLen=" + strconv.Itoa(w.MaxReadLength),
			"--Buffer=" + strconv.Itoa(w.Buffer),
			"--PrimaryID=" + w.PrimaryId,
			"--SecondID=" + secondaryId,
			"--dataset=" + w.Dataset,
			"--bamFile=" + bamFile,
			"--hdFile=" + h5File,
			"--orfFasta=" + w.OrfFastaFile,
			"--orfGFF=" + w.OrfGffFile,
			"--ribovizGFF=" + utils.BoolToRString(w.IsRibovizGff),
			"--StopInCDS=" + utils.BoolToRString(w.StopInCds),
		},
		RequiredInput: bamFile,
		Outputs:       []string{h5File},
	}
}

func (s *Sequencer) generateStatsFigsStage(sampleId string, h5File string) workflow.Stage {
	w := &s.Config.Workflow
	outDir := s.Planner.SampleOutDir(sampleId)

	command := []string{
		s.Config.Tools.Rscript, "--vanilla",
		filepath.Join(s.Config.Scripts.RDir, "generate_stats_figs.R"),
		"--Ncores=" + strconv.Itoa(w.NumProcesses),
		"--MinReadLen=" + strconv.Itoa(w.MinReadLength),
		"--MaxReadLen=" + strconv.Itoa(w.MaxReadLength),
		"--Buffer=" + strconv.Itoa(w.Buffer),
		"--PrimaryID=" + w.PrimaryId,
		"--dataset=" + w.Dataset,
		"--hdFile=" + h5File,
		"--output-dir=" + outDir,
		"--orf-fasta-file=" + w.OrfFastaFile,
		"--orf-gff-file=" + w.OrfGffFile,
		"--rpf=" + utils.BoolToRString(w.Rpf),
	}
	if w.TRnaFile != "" {
		command = append(command, "--t-rna-file="+w.TRnaFile)
	}
	if w.CodonPositionsFile != "" {
		command = append(command, "--codon-positions-file="+w.CodonPositionsFile)
	}
	if w.FeaturesFile != "" {
		command = append(command, "--features-file="+w.FeaturesFile)
	}
	if w.AsiteDispLengthFile != "" {
		command = append(command, "--asite-disp-length-file="+w.AsiteDispLengthFile)
	}
	if w.CountThreshold > 0 {
		command = append(command, "--count-threshold="+strconv.Itoa(w.CountThreshold))
	}
	command = append(command, "--do-pos-sp-nt-freq="+utils.BoolToRString(w.DoPosSpNtFreq))

	outputs := []string{
		filepath.Join(outDir, paths.TpmsTsv),
		filepath.Join(outDir, "3nt_periodicity.tsv"),
		filepath.Join(outDir, "read_lengths.tsv"),
		filepath.Join(outDir, "pos_sp_rpf_norm_reads.tsv"),
		filepath.Join(outDir, "3ntframe_bygene.tsv"),
		filepath.Join(outDir, "codon_ribodens.tsv"),
	}
	if w.DoPosSpNtFreq {
		outputs = append(outputs, filepath.Join(outDir, "pos_sp_nt_freq.tsv"))
	}

	return workflow.Stage{
		Name:          stage.GenerateStatsFigs,
		Program:       "generate_stats_figs",
		Command:       command,
		RequiredInput: h5File,
		Outputs:       outputs,
	}
}
