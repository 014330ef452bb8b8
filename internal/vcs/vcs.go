// Package vcs implements the VCS collaborator contract (spec §6.5): a
// small interface the changeset applier and MCP surface depend on for
// repository introspection and commit recording. Reads that the
// teacher's pkg/gitlib already covers (HEAD, commit walking) go through
// libgit2; branch enumeration, staging, committing, checkout, and stash
// operations shell out to the git CLI, mirroring how
// original_source/backend/app/services/git_service.py performs its
// write-side operations and how the teacher's own test helpers
// (internal/framework/memory_leak_test.go) invoke git as a subprocess.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/codeatlas-dev/codeatlas/pkg/gitlib"
)

// ErrGitError is the GitError sentinel of spec §7: the underlying git
// tool's stderr is wrapped into the returned error, and the collaborator
// never mutates changeset state on failure.
var ErrGitError = errors.New("vcs: git command failed")

// BranchInfo describes one local branch (spec §6.5 list_branches).
type BranchInfo struct {
	Name              string
	IsCurrent         bool
	CommitSHA         string
	LastCommitMessage string
}

// CommitInfo describes one commit (spec §6.5 list_commits).
type CommitInfo struct {
	SHA         string
	ShortSHA    string
	Message     string
	Author      string
	AuthorEmail string
	Date        time.Time
}

// CommitResult is the return value of Commit.
type CommitResult struct {
	SHA string
}

// Status is the supplemented git-status summary (grounded on
// original_source/backend/app/services/git_service.py: get_status),
// folded into the VCS collaborator per SPEC_FULL.md.
type Status struct {
	Staged    []string
	Modified  []string
	Untracked []string
}

// Collaborator is the VCS collaborator for one working-tree root.
type Collaborator struct {
	Root string
}

// New builds a Collaborator rooted at root.
func New(root string) *Collaborator {
	return &Collaborator{Root: root}
}

// IsRepo reports whether Root is (inside) a git working tree.
func (c *Collaborator) IsRepo(ctx context.Context) bool {
	out, err := c.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// CurrentBranch returns the checked-out branch name, or "" when HEAD is
// detached or the repo has no commits yet.
func (c *Collaborator) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		return "", nil //nolint:nilerr // detached HEAD or unborn branch: no current branch, not an error.
	}

	return strings.TrimSpace(out), nil
}

// CurrentCommit returns the HEAD commit's full SHA via libgit2, falling
// back to "" when the repository has no commits yet.
func (c *Collaborator) CurrentCommit(_ context.Context) (string, error) {
	repo, err := gitlib.OpenRepository(c.Root)
	if err != nil {
		return "", fmt.Errorf("%w: open repository: %w", ErrGitError, err)
	}
	defer repo.Free()

	head, err := repo.Head()
	if err != nil {
		return "", nil //nolint:nilerr // unborn HEAD: no current commit yet.
	}

	return head.String(), nil
}

// ListBranches returns every local branch, its head commit, and whether
// it is the currently checked-out branch.
func (c *Collaborator) ListBranches(ctx context.Context) ([]BranchInfo, error) {
	const sep = "\x1f"

	format := "%(refname:short)" + sep + "%(HEAD)" + sep + "%(objectname)" + sep + "%(contents:subject)"

	out, err := c.run(ctx, "for-each-ref", "--format="+format, "refs/heads/")
	if err != nil {
		return nil, fmt.Errorf("%w: list branches: %s", ErrGitError, err)
	}

	var branches []BranchInfo

	for _, line := range splitNonEmptyLines(out) {
		fields := strings.Split(line, sep)
		if len(fields) != 4 {
			continue
		}

		branches = append(branches, BranchInfo{
			Name:              fields[0],
			IsCurrent:         fields[1] == "*",
			CommitSHA:         fields[2],
			LastCommitMessage: fields[3],
		})
	}

	return branches, nil
}

// ListCommits returns up to limit commits reachable from HEAD, most
// recent first, via libgit2's log walk. Only HEAD is walked: a non-empty
// branch returns ErrGitError without listing anything.
func (c *Collaborator) ListCommits(_ context.Context, limit int, branch string) ([]CommitInfo, error) {
	repo, err := gitlib.OpenRepository(c.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: open repository: %w", ErrGitError, err)
	}
	defer repo.Free()

	if branch != "" {
		return nil, fmt.Errorf("%w: listing commits for a branch other than HEAD requires the os/exec path (not implemented)", ErrGitError)
	}

	iter, err := repo.Log(&gitlib.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: walk log: %w", ErrGitError, err)
	}
	defer iter.Close()

	var out []CommitInfo

	err = iter.ForEach(func(commit *gitlib.Commit) error {
		if limit > 0 && len(out) >= limit {
			return errStopIteration
		}

		sha := commit.Hash().String()
		author := commit.Author()

		out = append(out, CommitInfo{
			SHA:         sha,
			ShortSHA:    shortSHA(sha),
			Message:     strings.TrimSpace(commit.Message()),
			Author:      author.Name,
			AuthorEmail: author.Email,
			Date:        author.When,
		})

		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("%w: iterate log: %w", ErrGitError, err)
	}

	return out, nil
}

var errStopIteration = errors.New("vcs: stop iteration")

// Stage runs `git add` for paths, satisfying internal/changeset.VCS.
func (c *Collaborator) Stage(ctx context.Context, root string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"add", "--"}, paths...)
	if _, err := c.runIn(ctx, root, args...); err != nil {
		return fmt.Errorf("%w: stage: %s", ErrGitError, err)
	}

	return nil
}

// Commit runs `git commit`, satisfying internal/changeset.VCS.
func (c *Collaborator) Commit(ctx context.Context, root string, message string) (string, error) {
	if _, err := c.runIn(ctx, root, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("%w: commit: %s", ErrGitError, err)
	}

	out, err := c.runIn(ctx, root, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: resolve new commit: %s", ErrGitError, err)
	}

	return strings.TrimSpace(out), nil
}

// CommitAs runs `git commit` with an explicit author, returning the full
// CommitResult (spec §6.5 commit(message, author?)).
func (c *Collaborator) CommitAs(ctx context.Context, message, author string) (CommitResult, error) {
	args := []string{"commit", "-m", message}
	if author != "" {
		args = append(args, "--author", author)
	}

	if _, err := c.run(ctx, args...); err != nil {
		return CommitResult{}, fmt.Errorf("%w: commit: %s", ErrGitError, err)
	}

	sha, err := c.CurrentCommit(ctx)
	if err != nil {
		return CommitResult{}, err
	}

	return CommitResult{SHA: sha}, nil
}

// Checkout switches the working tree to branch.
func (c *Collaborator) Checkout(ctx context.Context, branch string) error {
	if _, err := c.run(ctx, "checkout", branch); err != nil {
		return fmt.Errorf("%w: checkout %s: %s", ErrGitError, branch, err)
	}

	return nil
}

// StashPush stashes the working tree, returning false when there was
// nothing to stash.
func (c *Collaborator) StashPush(ctx context.Context, message string) (bool, error) {
	args := []string{"stash", "push"}
	if message != "" {
		args = append(args, "-m", message)
	}

	out, err := c.run(ctx, args...)
	if err != nil {
		return false, fmt.Errorf("%w: stash push: %s", ErrGitError, err)
	}

	return !strings.Contains(out, "No local changes to save"), nil
}

// Status returns the staged/modified/untracked file lists from `git
// status --porcelain` (spec SPEC_FULL.md supplemented feature).
func (c *Collaborator) Status(ctx context.Context) (Status, error) {
	out, err := c.run(ctx, "status", "--porcelain")
	if err != nil {
		return Status{}, fmt.Errorf("%w: status: %s", ErrGitError, err)
	}

	var st Status

	for _, line := range strings.Split(out, "\n") {
		if len(line) < 3 {
			continue
		}

		indexState, worktreeState, path := line[0], line[1], strings.TrimSpace(line[3:])

		switch {
		case indexState == '?' && worktreeState == '?':
			st.Untracked = append(st.Untracked, path)
		default:
			if indexState != ' ' {
				st.Staged = append(st.Staged, path)
			}

			if worktreeState != ' ' {
				st.Modified = append(st.Modified, path)
			}
		}
	}

	return st, nil
}

// StashPop pops the most recent stash, returning false when the stash
// was empty.
func (c *Collaborator) StashPop(ctx context.Context) (bool, error) {
	out, err := c.run(ctx, "stash", "pop")
	if err != nil {
		if strings.Contains(out, "No stash entries found") || strings.Contains(err.Error(), "No stash entries found") {
			return false, nil
		}

		return false, fmt.Errorf("%w: stash pop: %s", ErrGitError, err)
	}

	return true, nil
}

func (c *Collaborator) run(ctx context.Context, args ...string) (string, error) {
	return c.runIn(ctx, c.Root, args...)
}

func (c *Collaborator) runIn(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}

		return stdout.String(), errors.New(msg)
	}

	return stdout.String(), nil
}

func splitNonEmptyLines(s string) []string {
	var out []string

	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}

	return out
}

func shortSHA(sha string) string {
	const shortLen = 7
	if len(sha) < shortLen {
		return sha
	}

	return sha[:shortLen]
}
