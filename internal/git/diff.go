package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/binary"
	"github.com/go-git/go-git/v5/utils/diff"
	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff compares two revisions. With newRef empty the working tree is the new
// side; with oldRef also empty the old side is HEAD. Results are sorted by path.
func (r *Repo) Diff(ctx context.Context, oldRef, newRef string) ([]FileDiff, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if oldRef == "" && newRef != "" {
		return nil, fmt.Errorf("%w: new revision given without old revision", errors.ErrInvalidArgument)
	}

	var base *object.Commit
	if oldRef == "" {
		if r.hasCommits() {
			c, err := r.resolveCommit("HEAD")
			if err != nil {
				return nil, err
			}
			base = c
		}
	} else {
		c, err := r.resolveCommit(oldRef)
		if err != nil {
			return nil, err
		}
		base = c
	}

	var diffs []FileDiff
	var err error
	if newRef == "" {
		diffs, err = r.worktreeDiff(base)
	} else {
		to, rerr := r.resolveCommit(newRef)
		if rerr != nil {
			return nil, rerr
		}
		diffs, err = commitDiff(base, to)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
	return diffs, nil
}

// commitDiff converts the go-git patch between two commits.
func commitDiff(from, to *object.Commit) ([]FileDiff, error) {
	diffs := []FileDiff{}
	if from.Hash == to.Hash {
		return diffs, nil
	}
	patch, err := from.Patch(to)
	if err != nil {
		return nil, fmt.Errorf("failed to compute diff: %w", err)
	}

	for _, fp := range patch.FilePatches() {
		f, t := fp.Files()
		d := FileDiff{Binary: fp.IsBinary()}
		switch {
		case f == nil && t != nil:
			d.Path, d.Status = t.Path(), DiffAdded
		case f != nil && t == nil:
			d.Path, d.Status = f.Path(), DiffDeleted
		case f != nil && t != nil:
			d.Path, d.Status = t.Path(), DiffModified
			if f.Path() != t.Path() {
				d.OldPath, d.Status = f.Path(), DiffRenamed
			}
		default:
			continue
		}
		if !d.Binary {
			for _, c := range fp.Chunks() {
				d.addChunk(chunkType(c.Type()), c.Content())
			}
		}
		diffs = append(diffs, d)
	}
	return diffs, nil
}

func chunkType(op fdiff.Operation) string {
	switch op {
	case fdiff.Add:
		return ChunkAdd
	case fdiff.Delete:
		return ChunkDelete
	default:
		return ChunkEqual
	}
}

// worktreeDiff compares base (nil for an unborn branch) against the files on
// disk. Untracked files are reported as added.
func (r *Repo) worktreeDiff(base *object.Commit) ([]FileDiff, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	st, err := w.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	paths := map[string]bool{}
	for p, fs := range st {
		if fs.Staging != gogit.Unmodified || fs.Worktree != gogit.Unmodified {
			paths[p] = true
		}
	}

	var baseTree *object.Tree
	if base != nil {
		if baseTree, err = base.Tree(); err != nil {
			return nil, fmt.Errorf("failed to read tree: %w", err)
		}
		// Paths changed between base and HEAD are clean in status but still differ.
		if head, err := r.repo.Head(); err == nil && head.Hash() != base.Hash {
			if err := r.collectTreeChanges(baseTree, head.Hash(), paths); err != nil {
				return nil, err
			}
		}
	}

	diffs := []FileDiff{}
	for p := range paths {
		d, ok, err := r.diffPath(baseTree, p)
		if err != nil {
			return nil, err
		}
		if ok {
			diffs = append(diffs, d)
		}
	}
	return diffs, nil
}

func (r *Repo) collectTreeChanges(baseTree *object.Tree, headHash plumbing.Hash, paths map[string]bool) error {
	head, err := r.repo.CommitObject(headHash)
	if err != nil {
		return fmt.Errorf("failed to read HEAD: %w", err)
	}
	headTree, err := head.Tree()
	if err != nil {
		return fmt.Errorf("failed to read tree: %w", err)
	}
	changes, err := object.DiffTree(baseTree, headTree)
	if err != nil {
		return fmt.Errorf("failed to compute diff: %w", err)
	}
	for _, c := range changes {
		if c.From.Name != "" {
			paths[c.From.Name] = true
		}
		if c.To.Name != "" {
			paths[c.To.Name] = true
		}
	}
	return nil
}

// diffPath diffs one path between baseTree and disk. ok is false when the
// two sides are identical or both absent.
func (r *Repo) diffPath(baseTree *object.Tree, path string) (FileDiff, bool, error) {
	var (
		oldData       []byte
		oldOK, oldBin bool
		newData       []byte
		newOK, newBin bool
	)

	if baseTree != nil {
		if f, err := baseTree.File(path); err == nil {
			content, err := f.Contents()
			if err != nil {
				return FileDiff{}, false, fmt.Errorf("failed to read %s: %w", path, err)
			}
			oldData, oldOK = []byte(content), true
			oldBin, _ = f.IsBinary()
		}
	}

	data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(path)))
	switch {
	case err == nil:
		newData, newOK = data, true
		newBin, _ = binary.IsBinary(bytes.NewReader(data))
	case !os.IsNotExist(err):
		return FileDiff{}, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if !oldOK && !newOK {
		return FileDiff{}, false, nil
	}
	if oldOK && newOK && bytes.Equal(oldData, newData) {
		return FileDiff{}, false, nil
	}

	d := FileDiff{Path: path, Status: DiffModified, Binary: oldBin || newBin}
	switch {
	case !oldOK:
		d.Status = DiffAdded
	case !newOK:
		d.Status = DiffDeleted
	}
	if d.Binary {
		return d, true, nil
	}

	for _, op := range diff.Do(string(oldData), string(newData)) {
		switch op.Type {
		case diffmatchpatch.DiffInsert:
			d.addChunk(ChunkAdd, op.Text)
		case diffmatchpatch.DiffDelete:
			d.addChunk(ChunkDelete, op.Text)
		default:
			d.addChunk(ChunkEqual, op.Text)
		}
	}
	return d, true, nil
}
