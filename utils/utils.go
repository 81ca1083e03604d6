package utils

import "strings"

func StringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

// FastqExtensions are the recognized FASTQ file extensions, gzipped
// variants first so that suffix matching strips the longest extension.
var FastqExtensions = []string{".fastq.gz", ".fq.gz", ".fastq", ".fq"}

// StripFastqExtension returns the file name with any recognized FASTQ
// extension removed, matching case-insensitively. Non-FASTQ names are
// returned unchanged.
func StripFastqExtension(fileName string) string {
	loweredName := strings.ToLower(fileName)
	for _, extension := range FastqExtensions {
		if strings.HasSuffix(loweredName, extension) {
			return fileName[:len(fileName)-len(extension)]
		}
	}
	return fileName
}

// BoolToRString renders a bool the way R command-line scripts
// expect their logical arguments.
func BoolToRString(value bool) string {
	if value {
		return "TRUE"
	}
	return "FALSE"
}
