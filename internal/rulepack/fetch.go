package rulepack

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	githubPrefix = "https://github.com/"
	gitBin       = "git"
	defaultRef   = "main"
)

var commitSHAPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// ResolveRef resolves a branch, tag, or partial commit to a full commit
// SHA using git ls-remote. A 40-char hex ref is returned as-is.
func ResolveRef(ctx context.Context, repo, ref string) (string, error) {
	if commitSHAPattern.MatchString(ref) {
		return ref, nil
	}
	url := repoURL(repo)
	cmd := exec.CommandContext(ctx, gitBin, "ls-remote", url, ref)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git ls-remote %s %s: %w", url, ref, err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return "", fmt.Errorf("git ls-remote: no result for ref %q", ref)
	}
	fields := strings.Fields(lines[0])
	if len(fields) < 1 {
		return "", fmt.Errorf("git ls-remote: invalid output")
	}
	sha := fields[0]
	if !commitSHAPattern.MatchString(sha) {
		return "", fmt.Errorf("git ls-remote: invalid sha %q", sha)
	}
	return sha, nil
}

func repoURL(repo string) string {
	repo = strings.TrimSpace(repo)
	if strings.HasPrefix(repo, "https://") || strings.HasPrefix(repo, "git@") {
		return repo
	}
	return githubPrefix + strings.TrimPrefix(repo, "/") + ".git"
}

// cloneAt clones repo into dir and checks out the resolved commit. dir
// is recreated from scratch.
func cloneAt(ctx context.Context, repo, ref, resolvedSHA, dir string) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	_ = os.RemoveAll(dir)

	url := repoURL(repo)
	var cloneCmd *exec.Cmd
	if commitSHAPattern.MatchString(ref) {
		cloneCmd = exec.CommandContext(ctx, gitBin, "clone", "--depth", "1", url, dir)
	} else {
		cloneCmd = exec.CommandContext(ctx, gitBin, "clone", "--depth", "1", "--branch", ref, url, dir)
	}
	if output, err := cloneCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone: %w (output: %s)", err, string(output))
	}

	checkoutTarget := resolvedSHA
	if checkoutTarget == "" {
		checkoutTarget = ref
	}
	if checkoutTarget != "" {
		checkout := exec.CommandContext(ctx, gitBin, "checkout", checkoutTarget)
		checkout.Dir = dir
		if output, err := checkout.CombinedOutput(); err != nil {
			return fmt.Errorf("git checkout %s: %w (output: %s)", checkoutTarget, err, string(output))
		}
	}
	return nil
}

// EnsurePack returns the directory holding the named pack. A pack
// without a github source must already exist under stateDir. Remote
// packs are cloned once and pinned in rulepacks.lock; a pack whose
// lock entry still matches is not fetched again.
func EnsurePack(ctx context.Context, stateDir, name, github, ref string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("rulepack name is required")
	}
	packDir := filepath.Join(stateDir, name)

	if github == "" {
		if _, err := os.Stat(packDir); err != nil {
			return "", fmt.Errorf("local rulepack %q: %w", name, err)
		}
		return packDir, nil
	}

	if ref == "" {
		ref = defaultRef
	}

	lock, err := LoadLock(stateDir)
	if err != nil {
		return "", err
	}

	entry, locked := lock.Packs[name]
	if locked && entry.GitHub == github && entry.Ref == ref && entry.Resolved != "" && entry.Path != "" {
		absPath := entry.Path
		if !filepath.IsAbs(absPath) {
			absPath = filepath.Join(stateDir, entry.Path)
		}
		if _, err := os.Stat(absPath); err == nil {
			return absPath, nil
		}
	}

	resolved, err := ResolveRef(ctx, github, ref)
	if err != nil {
		return "", fmt.Errorf("resolve ref %q: %w", ref, err)
	}

	if err := cloneAt(ctx, github, ref, resolved, packDir); err != nil {
		return "", err
	}

	relPath, _ := filepath.Rel(stateDir, packDir)
	if relPath == "" || strings.HasPrefix(relPath, "..") {
		relPath = packDir
	}
	lock.Packs[name] = LockEntry{
		GitHub:   github,
		Ref:      ref,
		Resolved: resolved,
		Path:     relPath,
	}
	if err := SaveLock(stateDir, lock); err != nil {
		return "", err
	}
	return packDir, nil
}
