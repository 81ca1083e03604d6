package artifacts

import (
	"bufio"
	"os"
	"strings"
)

// SamFile counts alignment lines in a SAM file. Header lines start
// with '@' and are not reads.
type SamFile struct {
	FilePath string
}

func (s SamFile) Path() string {
	return s.FilePath
}

func (s SamFile) Count() (int, error) {
	file, err := os.Open(s.FilePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	alignments := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "@") {
			continue
		}
		alignments++
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return alignments, nil
}
