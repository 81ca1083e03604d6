package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
)

func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}

// FileNonEmpty reports whether filePath exists and holds at least one
// byte. Absent and zero-length files are equivalent for the purposes
// of deciding whether a stage has any input to work on.
func FileNonEmpty(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir() && info.Size() > 0
}

func CreateAndGetNewFile(filePath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}
	return os.Create(filePath)
}

func AppendLine(filePath string, line string) error {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(line + "\n")
	return err
}

// AwaitFile polls for filePath with an exponential backoff until it
// appears or maxElapsed passes. Files written by an external process
// can lag behind its exit on shared filesystems.
func AwaitFile(filePath string, maxElapsed time.Duration) error {
	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.InitialInterval = 50 * time.Millisecond
	retryBackoff.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		if FileExists(filePath) {
			return nil
		}
		return fmt.Errorf("file %s not yet present", filePath)
	}, retryBackoff)
}
