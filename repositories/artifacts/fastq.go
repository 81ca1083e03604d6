package artifacts

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"
)

// FastqFile counts sequence records in a FASTQ file, gzipped or not.
// A record is four lines; partial trailing records are ignored.
type FastqFile struct {
	FilePath string
}

func (f FastqFile) Path() string {
	return f.FilePath
}

func (f FastqFile) Count() (int, error) {
	file, err := os.Open(f.FilePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(strings.ToLower(f.FilePath), ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			return 0, err
		}
		defer gzReader.Close()
		reader = gzReader
	}

	lines := 0
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines++
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return lines / 4, nil
}
