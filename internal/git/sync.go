package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/gardener/internal/foundation/errors"
	"git.home.luguber.info/inful/gardener/internal/logfields"
)

// Options configures a Syncer.
type Options struct {
	// Dir is any path inside the working tree, usually the content directory.
	Dir         string
	Remote      string
	Branch      string
	AuthorName  string
	AuthorEmail string
	Push        bool
	Auth        transport.AuthMethod
	// Now stamps commits; defaults to time.Now.
	Now func() time.Time
}

// Result summarizes one sync.
type Result struct {
	Before    string
	After     string
	Committed int
	Pulled    bool
	Pushed    bool
}

// Syncer runs syncs against one working tree. Concurrent Sync calls are serialized.
type Syncer struct {
	opts Options
	mu   sync.Mutex
	// remove deletes untracked files before the pull.
	remove func(string) error
}

// NewSyncer validates opts.
func NewSyncer(opts Options) (*Syncer, error) {
	if opts.Dir == "" {
		return nil, errors.ValidationError("sync directory is required").Build()
	}
	if opts.Remote == "" || opts.Branch == "" {
		return nil, errors.ValidationError("sync remote and branch are required").
			WithContext("remote", opts.Remote).
			WithContext("branch", opts.Branch).
			Build()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{opts: opts, remove: os.Remove}, nil
}

// snapshotEntry is one dirty file as it was before the sync touched the tree.
type snapshotEntry struct {
	data      []byte
	mode      os.FileMode
	deleted   bool
	// untracked files are not in HEAD, so a hard reset leaves them behind
	untracked bool
}

type snapshot map[string]snapshotEntry

func (s snapshot) paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Sync commits local edits, fast-forwards to the remote and pushes. On any pull failure,
// and when the pull touched a file that also has local edits, the branch is reset to the
// pre-sync head with the local edits restored uncommitted, and the error is returned.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpenWithOptions(s.opts.Dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Result{}, errors.WrapError(err, errors.CategoryGit, "failed to open repository").
			WithContext("dir", s.opts.Dir).
			Build()
	}
	wt, err := repo.Worktree()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	head, err := repo.Head()
	if err != nil {
		return Result{}, errors.WrapError(err, errors.CategoryGit, "repository has no commit to sync from").Build()
	}
	if !head.Name().IsBranch() || head.Name().Short() != s.opts.Branch {
		return Result{}, errors.GitError("checked out branch does not match sync branch").
			WithContext("head", head.Name().String()).
			WithContext("branch", s.opts.Branch).
			UserAction().
			Build()
	}
	before := head.Hash()
	res := Result{Before: before.String(), After: before.String()}

	snap, err := takeSnapshot(wt, root)
	if err != nil {
		return res, err
	}

	if len(snap) > 0 {
		if err := s.clearWorktree(wt, root, before, snap); err != nil {
			return res, s.abort(wt, root, before, snap, err)
		}
	}

	slog.Debug("Pulling", logfields.Remote(s.opts.Remote), logfields.Branch(s.opts.Branch), slog.Int("dirty", len(snap)))
	pullErr := wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    s.opts.Remote,
		ReferenceName: plumbing.NewBranchReferenceName(s.opts.Branch),
		SingleBranch:  true,
		Auth:          s.opts.Auth,
	})
	switch {
	case pullErr == nil:
		res.Pulled = true
	case stderrors.Is(pullErr, git.NoErrAlreadyUpToDate), stderrors.Is(pullErr, transport.ErrEmptyRemoteRepository):
	default:
		return res, s.abort(wt, root, before, snap, ClassifyGitError(pullErr, "pull", s.opts.Remote))
	}

	if res.Pulled {
		upstream, err := repo.Head()
		if err != nil {
			return res, s.abort(wt, root, before, snap, fmt.Errorf("failed to read head after pull: %w", err))
		}
		conflicts, err := overlapping(repo, before, upstream.Hash(), snap)
		if err != nil {
			return res, s.abort(wt, root, before, snap, err)
		}
		if len(conflicts) > 0 {
			return res, s.abort(wt, root, before, snap,
				errors.WrapError(&ConflictError{Branch: s.opts.Branch, Paths: conflicts}, errors.CategoryGit, "sync aborted").
					WithContext("files", len(conflicts)).
					UserAction().
					Build())
		}
		res.After = upstream.Hash().String()
	}

	if len(snap) > 0 {
		if err := restore(root, snap); err != nil {
			return res, s.abort(wt, root, before, snap, err)
		}
		hash, err := s.commit(wt, len(snap))
		if err != nil {
			return res, err
		}
		res.Committed = len(snap)
		res.After = hash.String()
	}

	if s.opts.Push {
		pushErr := repo.PushContext(ctx, &git.PushOptions{
			RemoteName: s.opts.Remote,
			RefSpecs:   []ggitcfg.RefSpec{ggitcfg.RefSpec(fmt.Sprintf("refs/heads/%[1]s:refs/heads/%[1]s", s.opts.Branch))},
			Auth:       s.opts.Auth,
		})
		switch {
		case pushErr == nil:
			res.Pushed = true
		case stderrors.Is(pushErr, git.NoErrAlreadyUpToDate):
		default:
			return res, ClassifyGitError(pushErr, "push", s.opts.Remote)
		}
	}

	slog.Info("Sync complete",
		logfields.Remote(s.opts.Remote),
		logfields.Branch(s.opts.Branch),
		slog.String("before", short(res.Before)),
		slog.String("after", short(res.After)),
		slog.Int("committed", res.Committed),
		slog.Bool("pushed", res.Pushed))
	return res, nil
}

func (s *Syncer) commit(wt *git.Worktree, files int) (plumbing.Hash, error) {
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to stage changes: %w", err)
	}
	now := s.opts.Now()
	msg := fmt.Sprintf("gardener sync: %s (%d files)", now.UTC().Format(time.RFC3339), files)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: s.opts.AuthorName, Email: s.opts.AuthorEmail, When: now},
	})
	if err != nil {
		return plumbing.ZeroHash, errors.WrapError(err, errors.CategoryGit, "failed to commit local changes").Build()
	}
	return hash, nil
}

func takeSnapshot(wt *git.Worktree, root string) (snapshot, error) {
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read worktree status: %w", err)
	}
	snap := snapshot{}
	for p, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		full := filepath.Join(root, filepath.FromSlash(p))
		info, err := os.Lstat(full)
		if os.IsNotExist(err) {
			snap[p] = snapshotEntry{deleted: true}
			continue
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to stat dirty file").WithContext("file", p).Build()
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read dirty file").WithContext("file", p).Build()
		}
		snap[p] = snapshotEntry{data: data, mode: info.Mode().Perm(), untracked: st.Worktree == git.Untracked || st.Staging == git.Added}
	}
	return snap, nil
}

// clearWorktree resets the tree to commit and removes untracked snapshot files, so the
// pull sees a clean tree.
func (s *Syncer) clearWorktree(wt *git.Worktree, root string, commit plumbing.Hash, snap snapshot) error {
	if err := wt.Reset(&git.ResetOptions{Commit: commit, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset worktree: %w", err)
	}
	for p, e := range snap {
		if !e.untracked {
			continue
		}
		if err := s.remove(filepath.Join(root, filepath.FromSlash(p))); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove untracked %s: %w", p, err)
		}
	}
	return nil
}

// abort rolls back and returns cause, joined with any rollback failure.
func (s *Syncer) abort(wt *git.Worktree, root string, commit plumbing.Hash, snap snapshot, cause error) error {
	if err := s.rollback(wt, root, commit, snap); err != nil {
		return stderrors.Join(cause, err)
	}
	return cause
}

// rollback resets to commit and writes the snapshot back. The snapshot is restored even
// when the reset fails, so local edits survive a half-cleared tree.
func (s *Syncer) rollback(wt *git.Worktree, root string, commit plumbing.Hash, snap snapshot) error {
	slog.Warn("Rolling back sync", slog.String("head", short(commit.String())), slog.Int("files", len(snap)))
	clearErr := s.clearWorktree(wt, root, commit, snap)
	return stderrors.Join(clearErr, restore(root, snap))
}

func restore(root string, snap snapshot) error {
	for _, p := range snap.paths() {
		e := snap[p]
		full := filepath.Join(root, filepath.FromSlash(p))
		if e.deleted {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to restore deletion of %s: %w", p, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return fmt.Errorf("failed to restore %s: %w", p, err)
		}
		if err := os.WriteFile(full, e.data, e.mode); err != nil {
			return fmt.Errorf("failed to restore %s: %w", p, err)
		}
	}
	return nil
}

// overlapping lists snapshot paths whose blob differs between the two commits.
func overlapping(repo *git.Repository, from, to plumbing.Hash, snap snapshot) ([]string, error) {
	if from == to {
		return nil, nil
	}
	fromTree, err := commitTree(repo, from)
	if err != nil {
		return nil, err
	}
	toTree, err := commitTree(repo, to)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range snap.paths() {
		if blobHash(fromTree, p) != blobHash(toTree, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func commitTree(repo *git.Repository, h plumbing.Hash) (*object.Tree, error) {
	c, err := repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit %s: %w", short(h.String()), err)
	}
	return c.Tree()
}

func blobHash(tree *object.Tree, p string) plumbing.Hash {
	entry, err := tree.FindEntry(p)
	if err != nil {
		return plumbing.ZeroHash
	}
	return entry.Hash
}

func short(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
