// Package loader resolves an on-disk checkout of a configuration
// repository into the namespaces and flags the config store holds,
// computing each flag's content hash and the repository's identity and
// commit along the way.
package loader

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lekkodev/sidecar/pkg/errs"
	"github.com/lekkodev/sidecar/pkg/gitmeta"
	"github.com/lekkodev/sidecar/pkg/log"
	"github.com/lekkodev/sidecar/pkg/store"
	"github.com/lekkodev/sidecar/pkg/types"
	"gopkg.in/yaml.v3"
)

const rootManifestName = "lekko.root.yaml"
const gitSyncContentsDir = "contents"

// Result is the fully-loaded view of a repository checkout at a single
// commit: its identity, the resolved commit id, and its namespaces.
type Result struct {
	RepoKey    types.RepositoryKey
	Commit     string
	Namespaces []store.Namespace
}

type rootManifest struct {
	Namespaces []string `yaml:"namespaces"`
}

// Load validates root, resolves the contents directory and commit id,
// parses the root manifest, and decodes every flag artifact beneath it.
// All failures are precise error-kinded failures; Load never panics on
// malformed input.
func Load(root string) (Result, error) {
	contentsDir, err := locateContentsDir(root)
	if err != nil {
		return Result{}, err
	}

	commit, err := resolveCommit(root, contentsDir)
	if err != nil {
		return Result{}, err
	}

	repoKey, err := gitmeta.RepositoryKey(root)
	if err != nil {
		return Result{}, err
	}

	names, err := loadNamespaceNames(contentsDir)
	if err != nil {
		return Result{}, err
	}

	namespaces := make([]store.Namespace, 0, len(names))
	for _, name := range names {
		ns, err := loadNamespace(contentsDir, name)
		if err != nil {
			return Result{}, err
		}
		namespaces = append(namespaces, ns)
	}

	return Result{RepoKey: repoKey, Commit: commit, Namespaces: namespaces}, nil
}

func locateContentsDir(root string) (string, error) {
	gitDir := filepath.Join(root, ".git")
	if info, err := os.Stat(gitDir); err != nil || !info.IsDir() {
		return "", errs.Internalf("loader: %s does not exist or is not a directory", gitDir)
	}

	if _, err := os.Stat(filepath.Join(root, rootManifestName)); err == nil {
		return root, nil
	}

	syncDir := filepath.Join(root, gitSyncContentsDir)
	if _, err := os.Stat(filepath.Join(syncDir, rootManifestName)); err == nil {
		return syncDir, nil
	}

	return "", errs.Internalf("loader: neither %s nor %s contains %s", root, syncDir, rootManifestName)
}

// resolveCommit follows the repofs convention: if the contents
// directory is a symlink (a git-sync layout), the commit id is the
// symlink target's basename; otherwise it's read from the working
// tree's HEAD.
func resolveCommit(root, contentsDir string) (string, error) {
	info, err := os.Lstat(contentsDir)
	if err != nil {
		return "", errs.InternalWrap(err, "loader: stat contents dir")
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(contentsDir)
		if err != nil {
			return "", errs.InternalWrap(err, "loader: reading contents symlink")
		}
		return filepath.Base(target), nil
	}
	return gitmeta.CommitID(root)
}

func loadNamespaceNames(contentsDir string) ([]string, error) {
	raw, err := os.ReadFile(filepath.Join(contentsDir, rootManifestName))
	if err != nil {
		return nil, errs.InternalWrap(err, "loader: reading %s", rootManifestName)
	}
	var manifest rootManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, errs.InternalWrap(err, "loader: parsing %s", rootManifestName)
	}
	return manifest.Namespaces, nil
}

func loadNamespace(contentsDir, name string) (store.Namespace, error) {
	protoDir := filepath.Join(contentsDir, name, "gen", "proto")
	entries, err := os.ReadDir(protoDir)
	if err != nil {
		return store.Namespace{}, errs.InvalidArgumentf("loader: reading namespace dir %s: %v", protoDir, err)
	}

	flagLog := log.WithNamespace(name)
	var records []store.FlagRecord
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		flagName, ok := stripProtoBinSuffix(e.Name())
		if !ok {
			flagLog.Warn().Str("file", e.Name()).Msg("skipping non-conforming flag artifact filename")
			continue
		}

		raw, err := os.ReadFile(filepath.Join(protoDir, e.Name()))
		if err != nil {
			return store.Namespace{}, errs.InternalWrap(err, "loader: reading flag artifact %s", e.Name())
		}

		flag, err := DecodeFlagArtifact(flagName, raw)
		if err != nil {
			return store.Namespace{}, err
		}

		records = append(records, store.FlagRecord{Flag: flag, ContentHash: ContentHash(raw)})
	}

	return store.Namespace{Name: name, Flags: records}, nil
}

const protoBinSuffix = ".proto.bin"

func stripProtoBinSuffix(filename string) (string, bool) {
	if len(filename) <= len(protoBinSuffix) {
		return "", false
	}
	cut := len(filename) - len(protoBinSuffix)
	if filename[cut:] != protoBinSuffix {
		return "", false
	}
	return filename[:cut], true
}

// ContentHash computes the hex SHA-1 of "blob <len>\0" || bytes, the
// same object identity git itself assigns a blob.
func ContentHash(raw []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(raw))
	h.Write(raw)
	return fmt.Sprintf("%x", h.Sum(nil))
}
