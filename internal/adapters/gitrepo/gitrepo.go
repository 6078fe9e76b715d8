// Package gitrepo reads scan input from a local git clone. The head commit
// is pinned at open time so every file read and diff during one scan sees
// the same tree
package gitrepo

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/mod/modfile"

	perr "datalens/internal/platform/errors"
	"datalens/internal/platform/logger"
)

// ErrBaseMissing reports that an incremental baseline commit is no longer
// reachable; callers fall back to a full walk
var ErrBaseMissing = perr.New(perr.ErrorCodeNotFound, "baseline commit not found")

// Repo is one opened repository pinned to its head commit
type Repo struct {
	path string
	repo *gogit.Repository
	head *object.Commit
	log  logger.Logger
}

// Open opens the repository containing path and pins its head commit.
// Repositories without commits are rejected; provenance needs a commit SHA
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "gitrepo resolve path %q", path)
	}
	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "gitrepo open %q", path)
	}
	ref, err := repo.Head()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "gitrepo %q has no head", path)
	}
	head, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "gitrepo read head commit")
	}
	return &Repo{path: abs, repo: repo, head: head, log: *logger.Named("gitrepo")}, nil
}

// Head returns the pinned head commit SHA
func (r *Repo) Head() string {
	return r.head.Hash.String()
}

// Identity derives the stable repository name: the origin remote when set,
// then the Go module path, then the package.json name, then the directory
func (r *Repo) Identity() string {
	if remote, err := r.repo.Remote("origin"); err == nil {
		if urls := remote.Config().URLs; len(urls) > 0 {
			if id := normalizeRemote(urls[0]); id != "" {
				return id
			}
		}
	}
	if data, err := r.ReadFile("go.mod"); err == nil {
		if p := modfile.ModulePath(data); p != "" {
			return p
		}
	}
	if data, err := r.ReadFile("package.json"); err == nil {
		var pkg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &pkg) == nil && strings.TrimSpace(pkg.Name) != "" {
			return pkg.Name
		}
	}
	return filepath.Base(r.path)
}

func normalizeRemote(url string) string {
	u := strings.TrimSuffix(strings.TrimSpace(url), ".git")
	for _, scheme := range []string{"https://", "http://", "ssh://", "git://"} {
		u = strings.TrimPrefix(u, scheme)
	}
	if i := strings.IndexByte(u, '@'); i >= 0 {
		u = u[i+1:]
	}
	u = strings.Replace(u, ":", "/", 1)
	return strings.Trim(u, "/")
}

// Files lists every path tracked at the pinned head, sorted
func (r *Repo) Files(ctx context.Context) ([]string, error) {
	tree, err := r.head.Tree()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "gitrepo head tree")
	}

	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "gitrepo list files")
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile returns a file's content at the pinned head
func (r *Repo) ReadFile(path string) ([]byte, error) {
	tree, err := r.head.Tree()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "gitrepo head tree")
	}
	f, err := tree.File(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "gitrepo read %q", path)
	}
	rd, err := f.Reader()
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "gitrepo open %q", path)
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

// Changed diffs the baseline commit against the pinned head. changed holds
// paths that exist at head, removed holds paths that no longer do; a rename
// contributes to both
func (r *Repo) Changed(ctx context.Context, baseSHA string) (changed, removed []string, err error) {
	base, err := r.repo.CommitObject(plumbing.NewHash(baseSHA))
	if err != nil {
		return nil, nil, ErrBaseMissing
	}
	baseTree, err := base.Tree()
	if err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "gitrepo baseline tree")
	}
	headTree, err := r.head.Tree()
	if err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "gitrepo head tree")
	}

	diffs, err := object.DiffTreeContext(ctx, baseTree, headTree)
	if err != nil {
		return nil, nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "gitrepo diff %s", baseSHA)
	}
	for _, ch := range diffs {
		from, to := ch.From.Name, ch.To.Name
		switch {
		case to == "":
			removed = append(removed, from)
		case from == "":
			changed = append(changed, to)
		case from != to:
			removed = append(removed, from)
			changed = append(changed, to)
		default:
			changed = append(changed, to)
		}
	}
	sort.Strings(changed)
	sort.Strings(removed)
	r.log.Debug().Str("base", baseSHA).Int("changed", len(changed)).Int("removed", len(removed)).Msg("diffed baseline")
	return changed, removed, nil
}
