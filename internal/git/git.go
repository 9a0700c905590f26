// Package git looks up the checked-out branch of agent working directories.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBranchTTL bounds how stale a cached branch name may be.
	DefaultBranchTTL = 10 * time.Second
	commandTimeout   = 2 * time.Second
)

// IsGitRepo checks if the given directory is inside a git repository
func IsGitRepo(ctx context.Context, dir string) bool {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

// GetCurrentBranch returns the current branch name for the repository at dir.
// A detached HEAD is reported as "HEAD".
func GetCurrentBranch(ctx context.Context, dir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--abbrev-ref", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// BranchLookupFunc resolves the branch of one directory.
type BranchLookupFunc func(ctx context.Context, dir string) (string, error)

type branchEntry struct {
	branch string
	at     time.Time
}

// BranchCache memoizes branch lookups per directory for a TTL. Failed
// lookups are cached as an empty branch so non-repositories are not
// re-probed every poll.
type BranchCache struct {
	mu      sync.Mutex
	entries map[string]branchEntry
	ttl     time.Duration
	lookup  BranchLookupFunc
	now     func() time.Time
	sf      singleflight.Group
}

// NewBranchCache creates a cache. A nil lookup uses GetCurrentBranch.
func NewBranchCache(ttl time.Duration, lookup BranchLookupFunc) *BranchCache {
	if ttl <= 0 {
		ttl = DefaultBranchTTL
	}
	if lookup == nil {
		lookup = GetCurrentBranch
	}
	return &BranchCache{
		entries: make(map[string]branchEntry),
		ttl:     ttl,
		lookup:  lookup,
		now:     time.Now,
	}
}

// Branch returns the branch for dir, or "" when dir is not a repository.
func (c *BranchCache) Branch(ctx context.Context, dir string) string {
	if dir == "" {
		return ""
	}

	c.mu.Lock()
	e, ok := c.entries[dir]
	c.mu.Unlock()
	if ok && c.now().Sub(e.at) < c.ttl {
		return e.branch
	}

	v, _, _ := c.sf.Do(dir, func() (any, error) {
		branch, err := c.lookup(ctx, dir)
		if err != nil || branch == "HEAD" {
			branch = ""
		}
		c.mu.Lock()
		c.entries[dir] = branchEntry{branch: branch, at: c.now()}
		c.mu.Unlock()
		return branch, nil
	})
	return v.(string)
}

// Forget drops every cached entry.
func (c *BranchCache) Forget() {
	c.mu.Lock()
	c.entries = make(map[string]branchEntry)
	c.mu.Unlock()
}
