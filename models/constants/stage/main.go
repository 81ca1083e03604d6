package stage

import (
	"riboviz/workflow/models/constants"
)

// Per-sample stages, in base execution order.
const (
	Cutadapt             constants.StageName = "cutadapt"
	ExtractUmis          constants.StageName = "extract_umis"
	Hisat2Rrna           constants.StageName = "hisat2_rrna"
	Hisat2Orf            constants.StageName = "hisat2_orf"
	Trim5pMismatch       constants.StageName = "trim_5p_mismatch"
	SamtoolsViewSort     constants.StageName = "samtools_view_sort"
	SamtoolsIndex        constants.StageName = "samtools_index"
	GroupUmisBeforeDedup constants.StageName = "group_umis_before_dedup"
	DedupUmis            constants.StageName = "dedup_umis"
	GroupUmisAfterDedup  constants.StageName = "group_umis_after_dedup"
	BedgraphPlus         constants.StageName = "bedtools_bedgraph_plus"
	BedgraphMinus        constants.StageName = "bedtools_bedgraph_minus"
	BamToH5              constants.StageName = "bam_to_h5"
	GenerateStatsFigs    constants.StageName = "generate_stats_figs"
)

// Global stages, run once per invocation.
const (
	BuildIndexRrna   constants.StageName = "hisat2_build_r_rna"
	BuildIndexOrf    constants.StageName = "hisat2_build_orf"
	DemultiplexFastq constants.StageName = "demultiplex_fastq"
	CollateTpms      constants.StageName = "collate_tpms"
	CountReads       constants.StageName = "count_reads"
)
