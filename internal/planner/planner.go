// Package planner splits a scanned source tree into Flat or Smart
// chunks bounded by size, file count, and depth (spec §4.3).
package planner

import (
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/robocurse/robocurse/internal/safety"
	"github.com/robocurse/robocurse/internal/scanner"
	"github.com/robocurse/robocurse/internal/state"
)

// Limits bounds a chunk's size (bytes), file count, and recursion depth.
type Limits struct {
	MaxSizeBytes int64
	MaxFiles     int
	MaxDepth     int
}

func (l Limits) fits(size int64, files int) bool {
	if l.MaxSizeBytes > 0 && size > l.MaxSizeBytes {
		return false
	}
	if l.MaxFiles > 0 && files > l.MaxFiles {
		return false
	}
	return true
}

// idCounter assigns ChunkIds in emission order, monotonic per run (spec
// §3 invariant 1, §4.3 "deterministic for a given scan result").
type idCounter struct{ n atomic.Int64 }

func (c *idCounter) next() int64 { return c.n.Add(1) - 1 }

// Plan produces the ordered chunk list for a profile given its already
// computed tree profile.
func Plan(profile *state.Profile, tree *scanner.TreeProfile, limits Limits) []*state.Chunk {
	ids := &idCounter{}
	switch profile.ScanMode {
	case state.ScanFlat:
		return planFlat(tree, limits, ids)
	default:
		return planSmart(tree, limits, ids)
	}
}

func newChunk(ids *idCounter, sourceSub, destSub string, size int64, extra []string) *state.Chunk {
	return &state.Chunk{
		ChunkId:       ids.next(),
		SourceSubpath: sourceSub,
		DestSubpath:   destSub,
		EstimatedSize: size,
		ExtraArgs:     safety.SanitizeChunkArgs(extra),
		Status:        state.ChunkPending,
	}
}

// planFlat treats the source as a single directory: one chunk per
// top-level child (merging small ones, splitting oversize ones) plus one
// files-only chunk for loose files directly under the root.
func planFlat(tree *scanner.TreeProfile, limits Limits, ids *idCounter) []*state.Chunk {
	var chunks []*state.Chunk

	root := tree.PerSubdir["."]
	// The root DirProfile aggregates recursive totals, but the flat
	// files-only chunk (carries /LEV:1 per spec §4.3) only covers files
	// directly in the root. We derive that by subtracting the sum of
	// immediate children's recursive sizes.
	var childDirs []string
	for rel := range tree.PerSubdir {
		if rel == "." {
			continue
		}
		if filepath.Dir(filepath.ToSlash(rel)) == "." {
			childDirs = append(childDirs, rel)
		}
	}
	sort.Strings(childDirs)

	childTotalSize := int64(0)
	for _, rel := range childDirs {
		childTotalSize += tree.PerSubdir[rel].Size
	}
	rootFilesOnlySize := root.Size - childTotalSize
	if rootFilesOnlySize < 0 {
		rootFilesOnlySize = 0
	}
	chunks = append(chunks, newChunk(ids, ".", ".", rootFilesOnlySize, []string{"/LEV:1"}))

	// Merge consecutive small children until limits are reached; split
	// oversize children recursively.
	var pending []string
	pendingSize := int64(0)
	pendingFiles := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if len(pending) == 1 {
			chunks = append(chunks, newChunk(ids, pending[0], pending[0], pendingSize, nil))
		} else {
			// Merged siblings are emitted as one chunk per child, each
			// with its own subpath and size, so every chunk keeps a single
			// source/destination subpath mapping (spec §4.3 "chunks
			// preserve the relative path"); the merge only groups them
			// into consecutive emission order. See DESIGN.md for the
			// open-question note this resolves.
			for _, child := range pending {
				childProfile := tree.PerSubdir[child]
				chunks = append(chunks, newChunk(ids, child, child, childProfile.Size, nil))
			}
		}
		pending = nil
		pendingSize = 0
		pendingFiles = 0
	}

	for _, rel := range childDirs {
		p := tree.PerSubdir[rel]
		if !limits.fits(p.Size, p.Files) {
			flush()
			chunks = append(chunks, splitOversizeChild(tree, rel, limits, ids)...)
			continue
		}
		if limits.fits(pendingSize+p.Size, pendingFiles+p.Files) {
			pending = append(pending, rel)
			pendingSize += p.Size
			pendingFiles += p.Files
			continue
		}
		flush()
		pending = append(pending, rel)
		pendingSize = p.Size
		pendingFiles = p.Files
	}
	flush()

	return chunks
}

// splitOversizeChild splits a too-large flat child: the directory itself
// with /LEV:1 for its loose files, then each grandchild recursively
// (spec §4.3, §9 open question: exact split points are planner-internal
// — resolved here as "one chunk per immediate grandchild, recursing
// again on any grandchild that is still oversize").
func splitOversizeChild(tree *scanner.TreeProfile, rel string, limits Limits, ids *idCounter) []*state.Chunk {
	var chunks []*state.Chunk
	p := tree.PerSubdir[rel]

	var grandchildren []string
	for candidate := range tree.PerSubdir {
		if candidate == rel || candidate == "." {
			continue
		}
		if filepath.Dir(filepath.ToSlash(candidate)) == filepath.ToSlash(rel) {
			grandchildren = append(grandchildren, candidate)
		}
	}
	sort.Strings(grandchildren)

	grandTotalSize := int64(0)
	for _, g := range grandchildren {
		grandTotalSize += tree.PerSubdir[g].Size
	}
	looseSize := p.Size - grandTotalSize
	if looseSize < 0 {
		looseSize = 0
	}
	chunks = append(chunks, newChunk(ids, rel, rel, looseSize, []string{"/LEV:1"}))

	for _, g := range grandchildren {
		gp := tree.PerSubdir[g]
		if !limits.fits(gp.Size, gp.Files) {
			chunks = append(chunks, splitOversizeChild(tree, g, limits, ids)...)
			continue
		}
		chunks = append(chunks, newChunk(ids, g, g, gp.Size, nil))
	}
	return chunks
}

// planSmart descends until a subtree fits within the limits; a fitting
// subtree becomes one chunk, a too-large one is split into its loose
// files (with /LEV:1) plus each child handled recursively. Siblings may
// be merged when their summed bounds still fit.
func planSmart(tree *scanner.TreeProfile, limits Limits, ids *idCounter) []*state.Chunk {
	var chunks []*state.Chunk
	descend(tree, ".", 0, limits, ids, &chunks)
	return chunks
}

func descend(tree *scanner.TreeProfile, rel string, depth int, limits Limits, ids *idCounter, chunks *[]*state.Chunk) {
	p := tree.PerSubdir[rel]

	if limits.fits(p.Size, p.Files) || (limits.MaxDepth > 0 && depth >= limits.MaxDepth) {
		*chunks = append(*chunks, newChunk(ids, rel, rel, p.Size, nil))
		return
	}

	children := directChildren(tree, rel)
	if len(children) == 0 {
		*chunks = append(*chunks, newChunk(ids, rel, rel, p.Size, nil))
		return
	}

	childTotalSize := int64(0)
	for _, c := range children {
		childTotalSize += tree.PerSubdir[c].Size
	}
	looseSize := p.Size - childTotalSize
	if looseSize < 0 {
		looseSize = 0
	}
	*chunks = append(*chunks, newChunk(ids, rel, rel, looseSize, []string{"/LEV:1"}))

	// Merge consecutive children whose combined size still fits, in
	// emission (map-iteration-stabilized) order.
	var pending []string
	pendingSize, pendingFiles := int64(0), 0
	flushMerge := func() {
		if len(pending) == 0 {
			return
		}
		if len(pending) == 1 {
			descend(tree, pending[0], depth+1, limits, ids, chunks)
		} else {
			for _, c := range pending {
				cp := tree.PerSubdir[c]
				*chunks = append(*chunks, newChunk(ids, c, c, cp.Size, nil))
			}
		}
		pending, pendingSize, pendingFiles = nil, 0, 0
	}

	for _, c := range children {
		cp := tree.PerSubdir[c]
		if !limits.fits(cp.Size, cp.Files) {
			flushMerge()
			descend(tree, c, depth+1, limits, ids, chunks)
			continue
		}
		if limits.fits(pendingSize+cp.Size, pendingFiles+cp.Files) {
			pending = append(pending, c)
			pendingSize += cp.Size
			pendingFiles += cp.Files
			continue
		}
		flushMerge()
		pending = append(pending, c)
		pendingSize = cp.Size
		pendingFiles = cp.Files
	}
	flushMerge()
}

func directChildren(tree *scanner.TreeProfile, rel string) []string {
	var out []string
	relSlash := filepath.ToSlash(rel)
	for candidate := range tree.PerSubdir {
		if candidate == rel || candidate == "." {
			continue
		}
		parent := filepath.ToSlash(filepath.Dir(filepath.ToSlash(candidate)))
		if parent == relSlash {
			out = append(out, candidate)
		}
	}
	sort.Strings(out)
	return out
}
