// Package gitscan implements the three git scanning modes (commit, since,
// staged) on top of go-git, replacing a shell-exec("git", ...) plumbing
// layer with the library the module already depends on.
package gitscan

import (
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/utils/merkletrie"
	"github.com/varalys/veil/internal/types"
)

// Blob is one file's content at a point in git history, ready to be
// handed to the line matcher.
type Blob struct {
	Path string
	Data []byte
	Git  types.GitMeta
}

// Open opens the repository rooted at or above dir.
func Open(dir string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("gitscan: open %s: %w", dir, err)
	}
	return repo, nil
}

// CommitBlobs diffs the named commit against its first parent and returns
// the full, current tree-blob content for every added or modified path.
// The initial commit (no parent) is diffed against an empty tree.
func CommitBlobs(repo *git.Repository, commitish string) ([]Blob, error) {
	hash, err := resolve(repo, commitish)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("gitscan: load commit %s: %w", commitish, err)
	}
	return diffAgainstParent(commit)
}

// SinceBlobs walks first-parent history from HEAD, stopping at the first
// commit strictly older than since, and returns the changed-file blobs
// for every commit visited.
func SinceBlobs(repo *git.Repository, since time.Time) ([]Blob, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("gitscan: resolve HEAD: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("gitscan: log from HEAD: %w", err)
	}
	defer iter.Close()

	var out []Blob
	walkErr := iter.ForEach(func(c *object.Commit) error {
		if c.Author.When.Before(since) {
			return storer.ErrStop
		}
		blobs, derr := diffAgainstParent(c)
		if derr != nil {
			return nil // a single malformed commit never aborts the walk
		}
		out = append(out, blobs...)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return out, nil
}

// StagedBlobs diffs HEAD (or an empty tree, on an unborn branch) against
// the index and returns the staged content of every added/modified path.
func StagedBlobs(repo *git.Repository) ([]Blob, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("gitscan: worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("gitscan: status: %w", err)
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("gitscan: read index: %w", err)
	}
	byPath := make(map[string]plumbing.Hash, len(idx.Entries))
	for _, e := range idx.Entries {
		byPath[e.Name] = e.Hash
	}

	var out []Blob
	for path, st := range status {
		if st.Staging == git.Unmodified || st.Staging == git.Untracked || st.Staging == git.Deleted {
			continue
		}
		hash, ok := byPath[path]
		if !ok {
			continue
		}
		blob, berr := repo.BlobObject(hash)
		if berr != nil {
			continue
		}
		data, rerr := readBlob(blob)
		if rerr != nil {
			continue
		}
		out = append(out, Blob{Path: path, Data: data})
	}
	return out, nil
}

// RepoMetadata returns (remote, commit, branch) best-effort for the repo
// at root. Missing pieces come back as empty strings rather than errors,
// since this is cosmetic run-metadata, not scan-critical state.
func RepoMetadata(root string) (remote, commit, branch string) {
	repo, err := Open(root)
	if err != nil {
		return "", "", ""
	}
	if head, herr := repo.Head(); herr == nil {
		commit = head.Hash().String()
		if head.Name().IsBranch() {
			branch = head.Name().Short()
		}
	}
	if cfg, rerr := repo.Remote("origin"); rerr == nil {
		if rc := cfg.Config(); rc != nil && len(rc.URLs) > 0 {
			remote = shortRemote(rc.URLs[0])
		}
	}
	return remote, commit, branch
}

func shortRemote(url string) string {
	s := url
	if i := indexLast(s, ":"); i >= 0 && indexOf(s, "://") < 0 {
		s = s[i+1:]
	}
	if i := indexOf(s, "github.com/"); i >= 0 {
		s = s[i+len("github.com/"):]
	}
	if len(s) > 4 && s[len(s)-4:] == ".git" {
		s = s[:len(s)-4]
	}
	return s
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func indexLast(s, sub string) int {
	last := -1
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			last = i
		}
	}
	return last
}

func readBlob(blob *object.Blob) ([]byte, error) {
	r, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func resolve(repo *git.Repository, commitish string) (*plumbing.Hash, error) {
	h, err := repo.ResolveRevision(plumbing.Revision(commitish))
	if err != nil {
		return nil, fmt.Errorf("gitscan: resolve %q: %w", commitish, err)
	}
	return h, nil
}

// diffAgainstParent returns the current full blob content for every file
// added or modified between commit and its first parent (empty tree for
// the initial commit).
func diffAgainstParent(commit *object.Commit) ([]Blob, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	var parentTree *object.Tree
	if parent, perr := commit.Parent(0); perr == nil {
		parentTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, err
	}

	meta := types.GitMeta{
		CommitSHA: commit.Hash.String(),
		Author:    commit.Author.Name,
		Date:      commit.Author.When.Format(time.RFC3339),
	}

	var out []Blob
	for _, change := range changes {
		action, aerr := change.Action()
		if aerr != nil || action == merkletrie.Delete {
			continue
		}
		_, to, ferr := change.Files()
		if ferr != nil || to == nil {
			continue
		}
		content, cerr := to.Contents()
		if cerr != nil {
			continue
		}
		out = append(out, Blob{Path: to.Name, Data: []byte(content), Git: meta})
	}
	return out, nil
}
