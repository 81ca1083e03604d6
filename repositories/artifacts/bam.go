package artifacts

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// BamFile counts alignments in a BAM file by shelling out to
// `samtools view -c`.
type BamFile struct {
	FilePath string
	Samtools string
}

func (b BamFile) Path() string {
	return b.FilePath
}

func (b BamFile) Count() (int, error) {
	samtools := b.Samtools
	if samtools == "" {
		samtools = "samtools"
	}

	out, err := exec.Command(samtools, "view", "-c", b.FilePath).Output()
	if err != nil {
		return 0, fmt.Errorf("samtools view -c %s: %w", b.FilePath, err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, fmt.Errorf("samtools view -c %s returned %q: %w",
			b.FilePath, strings.TrimSpace(string(out)), err)
	}
	return count, nil
}
