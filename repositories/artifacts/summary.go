package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	sampleSheet "riboviz/workflow/models/constants/sample-sheet"
)

// SummaryFile is a tab-separated summary emitted by a stage alongside
// its main artifact, for example the mismatch trimmer's counts file.
type SummaryFile struct {
	FilePath string
}

func (s SummaryFile) Path() string {
	return s.FilePath
}

// Count satisfies Countable for summaries whose first data row holds
// a NumReads column.
func (s SummaryFile) Count() (int, error) {
	return s.IntColumn(sampleSheet.NumReadsColumn)
}

// IntColumn returns the named column's value from the first data row.
func (s SummaryFile) IntColumn(column string) (int, error) {
	header, rows, err := readTsv(s.FilePath)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%s has no data rows", s.FilePath)
	}

	index, err := columnIndex(s.FilePath, header, column)
	if err != nil {
		return 0, err
	}
	return parseCount(s.FilePath, rows[0][index])
}

// ManifestRow is one line of the demultiplexer's num_reads.tsv,
// including its Unassigned and Total sentinel rows.
type ManifestRow struct {
	SampleId string
	TagRead  string
	NumReads int
}

// ReadManifest parses a demultiplex manifest into its rows, in file
// order.
func ReadManifest(filePath string) ([]ManifestRow, error) {
	header, rows, err := readTsv(filePath)
	if err != nil {
		return nil, err
	}

	sampleIndex, err := columnIndex(filePath, header, sampleSheet.SampleIdColumn)
	if err != nil {
		return nil, err
	}
	countIndex, err := columnIndex(filePath, header, sampleSheet.NumReadsColumn)
	if err != nil {
		return nil, err
	}
	tagIndex := -1
	for i, column := range header {
		if column == sampleSheet.TagReadColumn {
			tagIndex = i
		}
	}

	manifest := make([]ManifestRow, 0, len(rows))
	for _, row := range rows {
		if sampleIndex >= len(row) || countIndex >= len(row) {
			continue
		}
		count, err := parseCount(filePath, row[countIndex])
		if err != nil {
			return nil, err
		}
		entry := ManifestRow{SampleId: row[sampleIndex], NumReads: count}
		if tagIndex >= 0 && tagIndex < len(row) {
			entry.TagRead = row[tagIndex]
		}
		manifest = append(manifest, entry)
	}
	return manifest, nil
}

// ReadSampleSheet parses a sample sheet into (SampleID, TagRead)
// pairs, validating that both columns are present.
func ReadSampleSheet(filePath string) ([]ManifestRow, error) {
	header, rows, err := readTsv(filePath)
	if err != nil {
		return nil, err
	}

	sampleIndex, err := columnIndex(filePath, header, sampleSheet.SampleIdColumn)
	if err != nil {
		return nil, err
	}
	tagIndex, err := columnIndex(filePath, header, sampleSheet.TagReadColumn)
	if err != nil {
		return nil, err
	}

	sheet := make([]ManifestRow, 0, len(rows))
	for _, row := range rows {
		if sampleIndex >= len(row) || tagIndex >= len(row) {
			continue
		}
		sheet = append(sheet, ManifestRow{
			SampleId: row[sampleIndex],
			TagRead:  row[tagIndex],
		})
	}
	return sheet, nil
}

func readTsv(filePath string) ([]string, [][]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot parse %s: %w", filePath, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", filePath)
	}
	return records[0], records[1:], nil
}

func columnIndex(filePath string, header []string, column string) (int, error) {
	for i, name := range header {
		if name == column {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%s has no %s column", filePath, column)
}

func parseCount(filePath string, value string) (int, error) {
	count, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s holds non-numeric count %q", filePath, value)
	}
	return count, nil
}
