package mount

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
)

// candidateLetters is the scan order fixed by spec §4.6 step 3: Z down
// to D (A-C are reserved by Windows convention for floppy/system
// drives and are never allocated here).
var candidateLetters = func() []string {
	letters := make([]string, 0, 23)
	for c := 'Z'; c >= 'D'; c-- {
		letters = append(letters, string(c)+":")
	}
	return letters
}()

// reservation is the in-process "reserved" set (spec §4.6 step 4):
// letters claimed by a mount currently in progress, before they've been
// recorded in the registry.
type reservation struct {
	mu   sync.Mutex
	held map[string]bool
}

func newReservation() *reservation { return &reservation{held: make(map[string]bool)} }

func (r *reservation) reserve(letter string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held[letter] {
		return false
	}
	r.held[letter] = true
	return true
}

func (r *reservation) unreserve(letter string) {
	r.mu.Lock()
	delete(r.held, letter)
	r.mu.Unlock()
}

func (r *reservation) isReserved(letter string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[letter]
}

var netUseLine = regexp.MustCompile(`(?i)^\s*(?:OK|Disconnected)\s+([A-Z]:)\s`)

// remembered returns every drive letter the platform's remembered SMB
// mapping list carries, including disconnected ones (spec §4.6 step 3c).
func remembered(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool)
	cmd := exec.CommandContext(ctx, "net", "use")
	data, err := cmd.CombinedOutput()
	if err != nil {
		// `net use` with no mappings exits non-zero on some Windows
		// builds; treat any output we did get as authoritative and
		// only propagate a real error when there's nothing to parse.
		if len(data) == 0 {
			return out, err
		}
	}
	for _, line := range strings.Split(string(data), "\n") {
		if m := netUseLine.FindStringSubmatch(line); m != nil {
			out[strings.ToUpper(m[1])] = true
		}
	}
	return out, nil
}

// SelectDriveLetter picks the first free letter scanning Z..D, excluding
// in-use, in-process-reserved, and remembered-SMB letters (spec §4.6
// step 3), then reserves it (step 4). The caller must Unreserve it on
// both the success and failure paths (step 6).
func (m *Manager) SelectDriveLetter(ctx context.Context) (string, error) {
	inUse, err := remembered(ctx)
	if err != nil {
		return "", err
	}

	for _, letter := range candidateLetters {
		if inUse[letter] {
			continue
		}
		if _, err := os.Stat(letter + `\`); err == nil {
			continue
		}
		if m.reservations.isReserved(letter) {
			continue
		}
		if m.reservations.reserve(letter) {
			return letter, nil
		}
	}
	return "", errNoDriveLettersAvailable
}
