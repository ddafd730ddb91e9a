package mount

import (
	"errors"
	"io"
	"os"
)

// listOneEntry reports whether root is actually readable, confirming
// the mount is usable rather than a lazy mount that authenticated at
// `net use` time but never really connected (spec §4.6 step 9). An
// empty-but-readable root (io.EOF from Readdirnames) still counts as
// usable; only an outright open/read failure fails verification.
func listOneEntry(root string) (bool, error) {
	f, err := os.Open(root)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return true, nil
}
