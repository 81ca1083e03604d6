package artifactFormat

import (
	"strings"

	"riboviz/workflow/models/constants"
)

const (
	Unknown    constants.ArtifactFormat = "unknown"
	Fastq      constants.ArtifactFormat = "fastq"
	Sam        constants.ArtifactFormat = "sam"
	Bam        constants.ArtifactFormat = "bam"
	SummaryTsv constants.ArtifactFormat = "tsv"
)

func CastToArtifactFormat(fileName string) constants.ArtifactFormat {
	loweredName := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(loweredName, ".fastq"),
		strings.HasSuffix(loweredName, ".fq"),
		strings.HasSuffix(loweredName, ".fastq.gz"),
		strings.HasSuffix(loweredName, ".fq.gz"):
		return Fastq
	case strings.HasSuffix(loweredName, ".sam"):
		return Sam
	case strings.HasSuffix(loweredName, ".bam"):
		return Bam
	case strings.HasSuffix(loweredName, ".tsv"):
		return SummaryTsv
	default:
		return Unknown
	}
}
