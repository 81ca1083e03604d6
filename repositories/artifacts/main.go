package artifacts

import (
	"fmt"

	"riboviz/workflow/models/constants"
	af "riboviz/workflow/models/constants/artifact-format"
)

// Countable is an on-disk artifact whose number of reads can be
// determined by inspection.
type Countable interface {
	Path() string
	Count() (int, error)
}

// ForFile returns the Countable matching a file's format. The
// samtools command is needed for BAM files only.
func ForFile(filePath string, samtools string) (Countable, error) {
	switch af.CastToArtifactFormat(filePath) {
	case af.Fastq:
		return FastqFile{FilePath: filePath}, nil
	case af.Sam:
		return SamFile{FilePath: filePath}, nil
	case af.Bam:
		return BamFile{FilePath: filePath, Samtools: samtools}, nil
	case af.SummaryTsv:
		return SummaryFile{FilePath: filePath}, nil
	default:
		return nil, fmt.Errorf("no countable representation for %s", filePath)
	}
}

// Format is a convenience re-export for callers that only need the
// classification.
func Format(filePath string) constants.ArtifactFormat {
	return af.CastToArtifactFormat(filePath)
}
