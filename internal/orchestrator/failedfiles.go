package orchestrator

import (
	"fmt"
	"os"

	"github.com/robocurse/robocurse/internal/copier"
	"github.com/robocurse/robocurse/internal/roboerr"
	"github.com/robocurse/robocurse/internal/state"
)

// appendFailedFilesSummary appends one section per failed chunk to the
// session-wide failed-files report (spec §6), reusing copier.ParseLog's
// already-deduplicated error lines rather than re-scanning raw log text.
// The file is opened in append mode so later profiles in the same
// session add to it rather than overwrite it.
func appendFailedFilesSummary(path string, failed []*state.Chunk, logPathFor func(int64) string) error {
	if len(failed) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return roboerr.Wrap(roboerr.HealthIoError, component, "cannot open failed-files summary", err)
	}
	defer f.Close()

	for _, chunk := range failed {
		logPath := logPathFor(chunk.ChunkId)
		lf, err := os.Open(logPath)
		if err != nil {
			continue
		}
		stats := copier.ParseLog(lf)
		lf.Close()
		if len(stats.Errors) == 0 {
			continue
		}

		fmt.Fprintf(f, "=== %s ===\n", chunkLogName(logPath))
		for _, line := range stats.Errors {
			fmt.Fprintln(f, line)
		}
		fmt.Fprintln(f)
	}
	return nil
}

func chunkLogName(logPath string) string {
	for i := len(logPath) - 1; i >= 0; i-- {
		if logPath[i] == '/' || logPath[i] == '\\' {
			return logPath[i+1:]
		}
	}
	return logPath
}
