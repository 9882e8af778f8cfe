package planner

import (
	"path"
	"sort"
	"strings"

	"github.com/ashgrove/replistore/common"
	"github.com/ashgrove/replistore/orchestrator"
)

// dirNode is one directory in the in-memory tree built from a single
// recursive Lister.List call, with subtree totals computed bottom-up so the
// Smart algorithm never has to re-list a subtree it has already seen.
type dirNode struct {
	path          string
	depth         int
	children      map[string]*dirNode
	ownFiles      []ListEntry
	subtreeBytes  int64
	subtreeFiles  int64
}

func newDirNode(p string, depth int) *dirNode {
	return &dirNode{path: p, depth: depth, children: map[string]*dirNode{}}
}

func (n *dirNode) sortedChildren() []*dirNode {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*dirNode, 0, len(names))
	for _, name := range names {
		out = append(out, n.children[name])
	}
	return out
}

// ChunkPlanner plans chunks for one profile, grounded on the Directory
// Profiler's Lister contract so the same enumeration backs both profiling and
// planning.
type ChunkPlanner struct {
	profiler *Profiler
}

func NewChunkPlanner(profiler *Profiler) *ChunkPlanner {
	return &ChunkPlanner{profiler: profiler}
}

// ResetCache clears the underlying profiler's cache, implementing
// orchestrator.CacheResetter so StartReplicationRun can reset it at bootstrap
// without this package importing orchestrator for the reverse dependency.
func (cp *ChunkPlanner) ResetCache() {
	cp.profiler.Reset()
}

func excludedTrie(excludedDirs []string) *common.Trie {
	trie := common.NewTrie()
	for i, dir := range excludedDirs {
		trie.Insert(strings.Trim(dir, "/"), uint32(i+1))
	}
	return trie
}

// Plan implements orchestrator.ChunkPlanner. snap, when non-nil, supplies the
// scan root translation; the caller (Run.BeginProfile) is responsible for
// having already asked the snapshot provider to translate the source path --
// Plan itself only ever sees the final scan root via profile.SourcePath.
func (cp *ChunkPlanner) Plan(profile orchestrator.Profile, snap *orchestrator.Snapshot) ([]orchestrator.Chunk, error) {
	scanRoot, err := cp.resolveScanRoot(profile, snap)
	if err != nil {
		return nil, err
	}

	entries, err := cp.profiler.lister.List(scanRoot)
	if err != nil {
		return nil, err
	}

	root := buildTree(scanRoot, entries, excludedTrie(profile.CopyEngineOptions.ExcludedDirs))

	maxBytes := profile.ChunkMaxBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 62 // effectively unlimited
	}
	maxFiles := profile.ChunkMaxFiles
	if maxFiles <= 0 {
		maxFiles = 1 << 30
	}
	maxDepth := profile.ChunkMaxDepth

	var chunks []orchestrator.Chunk
	if profile.ScanMode == orchestrator.EScanMode.Flat() {
		chunks = planFlat(root, maxDepth)
	} else {
		chunks = planSmart(root, maxBytes, maxFiles, maxDepth)
	}

	for i := range chunks {
		chunks[i].ChunkID = common.ChunkIDGenerator.Next()
		chunks[i].DestinationPath = rebase(chunks[i].SourcePath, scanRoot, profile.DestinationPath)
	}

	return chunks, nil
}

func (cp *ChunkPlanner) resolveScanRoot(profile orchestrator.Profile, snap *orchestrator.Snapshot) (string, error) {
	// Translation itself happens in the snapshot provider; by the time Plan
	// runs, profile.SourcePath is already whatever root should be scanned
	// (raw source when no snapshot was taken or available).
	return profile.SourcePath, nil
}

func buildTree(scanRoot string, entries []ListEntry, excluded *common.Trie) *dirNode {
	root := newDirNode(scanRoot, 0)
	nodes := map[string]*dirNode{scanRoot: root}

	ensureDir := func(p string, depth int) *dirNode {
		if n, ok := nodes[p]; ok {
			return n
		}
		n := newDirNode(p, depth)
		nodes[p] = n
		return n
	}

	for _, e := range entries {
		rel := relativeTo(scanRoot, e.Path)
		if excluded != nil && rel != "" && excluded.ContainsPathOrAncestor(rel) {
			continue
		}

		parentPath, depth := parentAndDepth(scanRoot, e.Path)
		parent := ensureDir(parentPath, depth)

		if e.IsDir {
			childDepth := depth + 1
			child := ensureDir(e.Path, childDepth)
			parent.children[e.Path] = child
			continue
		}

		parent.ownFiles = append(parent.ownFiles, e)
	}

	computeSubtreeTotals(root)
	return root
}

func computeSubtreeTotals(n *dirNode) {
	for _, f := range n.ownFiles {
		n.subtreeBytes += f.Size
		n.subtreeFiles++
	}
	for _, child := range n.children {
		computeSubtreeTotals(child)
		n.subtreeBytes += child.subtreeBytes
		n.subtreeFiles += child.subtreeFiles
	}
}

func relativeTo(root, p string) string {
	rel := strings.TrimPrefix(p, root)
	return strings.Trim(rel, "/")
}

func parentAndDepth(scanRoot, entryPath string) (string, int) {
	parent := path.Dir(entryPath)
	if parent == "." || parent == "" {
		parent = scanRoot
	}
	rel := relativeTo(scanRoot, parent)
	depth := 0
	if rel != "" {
		depth = len(strings.Split(rel, "/"))
	}
	return parent, depth
}

// planSmart implements the Smart-mode algorithm from the chunk planner
// design: emit a single chunk for any subtree that fits within bytes/files
// limits; otherwise recurse, with an oversized chunk emitted only once the
// depth budget is exhausted (the planner never splits below the limits).
func planSmart(n *dirNode, maxBytes int64, maxFiles int, maxDepth int) []orchestrator.Chunk {
	var out []orchestrator.Chunk
	var visit func(node *dirNode)
	visit = func(node *dirNode) {
		fits := node.subtreeBytes <= maxBytes && node.subtreeFiles <= int64(maxFiles)
		exhausted := maxDepth > 0 && node.depth >= maxDepth

		if fits || exhausted {
			out = append(out, chunkFor(node, node.subtreeBytes, node.subtreeFiles))
			return
		}

		for _, child := range node.sortedChildren() {
			visit(child)
		}

		if len(node.ownFiles) > 0 {
			var bytes int64
			for _, f := range node.ownFiles {
				bytes += f.Size
			}
			out = append(out, chunkFor(node, bytes, int64(len(node.ownFiles))))
		}
	}
	visit(n)
	return out
}

// planFlat emits one chunk per directory at exactly maxDepth (0 meaning the
// whole root is a single chunk), with no subtree-size analysis.
func planFlat(n *dirNode, maxDepth int) []orchestrator.Chunk {
	if maxDepth <= 0 {
		return []orchestrator.Chunk{chunkFor(n, n.subtreeBytes, n.subtreeFiles)}
	}

	var out []orchestrator.Chunk
	var visit func(node *dirNode)
	visit = func(node *dirNode) {
		if node.depth == maxDepth {
			out = append(out, chunkFor(node, node.subtreeBytes, node.subtreeFiles))
			return
		}
		for _, child := range node.sortedChildren() {
			visit(child)
		}
	}
	visit(n)
	return out
}

func chunkFor(node *dirNode, bytes int64, files int64) orchestrator.Chunk {
	return orchestrator.Chunk{
		SourcePath:     node.path,
		EstimatedBytes: bytes,
		EstimatedFiles: files,
		Depth:          node.depth,
		Status:         orchestrator.EChunkStatus.Pending(),
	}
}

func rebase(sourcePath, scanRoot, destinationRoot string) string {
	rel := relativeTo(scanRoot, sourcePath)
	if rel == "" {
		return destinationRoot
	}
	return path.Join(destinationRoot, rel)
}
