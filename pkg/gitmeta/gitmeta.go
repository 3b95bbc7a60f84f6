// Package gitmeta reads just enough of a working tree's .git directory
// to resolve repository identity and the current commit, without
// depending on a git-plumbing library.
package gitmeta

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/types"
)

// RepositoryKey reads root/.git/config, extracts remote.origin.url, and
// derives (owner, name) by splitting on "/", stripping a trailing
// ".git", and taking the last two segments.
func RepositoryKey(root string) (types.RepositoryKey, error) {
	url, err := remoteOriginURL(filepath.Join(root, ".git", "config"))
	if err != nil {
		return types.RepositoryKey{}, err
	}
	return parseRepositoryKey(url)
}

// CommitID resolves the working tree's current commit by reading
// root/.git/HEAD. A detached HEAD contains the commit id directly; a
// symbolic HEAD ("ref: refs/heads/main") is followed to the ref file
// under .git.
func CommitID(root string) (string, error) {
	gitDir := filepath.Join(root, ".git")
	head, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return "", errs.InternalWrap(err, "gitmeta: reading HEAD")
	}
	line := strings.TrimSpace(string(head))

	const refPrefix = "ref: "
	if !strings.HasPrefix(line, refPrefix) {
		return line, nil
	}
	refPath := strings.TrimPrefix(line, refPrefix)

	refBytes, err := os.ReadFile(filepath.Join(gitDir, filepath.FromSlash(refPath)))
	if err != nil {
		return "", errs.InternalWrap(err, "gitmeta: resolving HEAD ref")
	}
	return strings.TrimSpace(string(refBytes)), nil
}

// remoteOriginURL hand-parses the INI-style .git/config looking for the
// url key inside the [remote "origin"] section.
func remoteOriginURL(configPath string) (string, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return "", errs.InternalWrap(err, "gitmeta: opening .git/config")
	}
	defer f.Close()

	inOriginSection := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section := strings.Trim(line, "[]")
			inOriginSection = section == `remote "origin"`
			continue
		}
		if !inOriginSection {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(k) != "url" {
			continue
		}
		return strings.TrimSpace(v), nil
	}
	if err := scanner.Err(); err != nil {
		return "", errs.InternalWrap(err, "gitmeta: scanning .git/config")
	}
	return "", errs.Internalf("gitmeta: no remote.origin.url found in %s", configPath)
}

func parseRepositoryKey(url string) (types.RepositoryKey, error) {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	segments := strings.Split(trimmed, "/")
	// An SSH-style URL (git@host:owner/repo) separates host from owner
	// with ":", so the first segment is cut at ":" too.
	if len(segments) > 0 {
		if _, after, found := strings.Cut(segments[0], ":"); found {
			segments[0] = after
		}
	}
	if len(segments) < 2 {
		return types.RepositoryKey{}, errs.Internalf("gitmeta: cannot derive owner/name from remote url %q", url)
	}
	key := types.RepositoryKey{Owner: segments[len(segments)-2], Name: segments[len(segments)-1]}
	if !key.Valid() {
		return types.RepositoryKey{}, errs.Internalf("gitmeta: derived empty owner or name from remote url %q", url)
	}
	return key, nil
}
