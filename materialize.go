package decompress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/sync/errgroup"

	"github.com/jmgilman/go/decompress/internal/validate"
)

const (
	defaultDirMode  fs.FileMode = 0o755
	defaultFileMode fs.FileMode = 0o644
)

// Materialize writes records under output without letting any of them escape it.
//
// The output directory is created if needed and its real path becomes the root
// for every containment check. Work happens in phases: directories and symlinks
// in record order, then regular files concurrently, then (after every file is
// written) hard links, and finally directory times. Any refusal or I/O failure
// stops the remaining work; files already written are left in place.
func Materialize(ctx context.Context, files []File, output string, opts ...Option) error {
	return materialize(ctx, files, output, newConfig(opts...))
}

// materializer holds the resolved root shared by all phases. The root is
// read-only after resolveRoot returns.
type materializer struct {
	root     string
	cfg      config
	symlinks []createdLink
}

// createdLink is a symlink created during the first phase.
type createdLink struct {
	path   string
	target string
	file   File
}

// createdDir is a directory record waiting for its final mode and times.
type createdDir struct {
	path string
	file File
}

func materialize(ctx context.Context, files []File, output string, cfg config) error {
	root, err := resolveRoot(output)
	if err != nil {
		return err
	}

	m := &materializer{root: root, cfg: cfg}
	log := cfg.logger.With("root", root)

	var (
		dirs    []createdDir
		regular []File
		links   []File
	)

	for _, f := range files {
		if err := isDone(ctx, "materializing"); err != nil {
			return err
		}

		switch f.Type {
		case TypeDirectory:
			path, err := m.makeDir(f)
			if err != nil {
				return err
			}
			dirs = append(dirs, createdDir{path: path, file: f})
			log.Debug("created directory", "record", f.String())
		case TypeSymlink:
			if symlinksAsHardLinks {
				links = append(links, f)
				continue
			}
			if err := m.symlink(f); err != nil {
				return err
			}
			log.Debug("created symlink", "record", f.String())
		case TypeFile:
			regular = append(regular, f)
		case TypeLink:
			links = append(links, f)
		default:
			return fmt.Errorf("unsupported record type %q for %s", f.Type, f.Path)
		}
	}

	if err := m.verifySymlinks(); err != nil {
		return err
	}

	if err := m.writeFiles(ctx, lastByPath(regular)); err != nil {
		return err
	}
	log.Debug("wrote regular files", "count", len(regular))

	for _, f := range links {
		if err := isDone(ctx, "materializing"); err != nil {
			return err
		}

		var err error
		if f.Type == TypeSymlink {
			err = m.symlinkFallback(f)
		} else {
			err = m.hardlink(f)
		}
		if err != nil {
			return err
		}
		log.Debug("created link", "record", f.String())
	}

	return m.finishDirs(dirs)
}

// resolveRoot creates output if needed and returns its real path.
func resolveRoot(output string) (string, error) {
	abs, err := filepath.Abs(output)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output path %s: %w", output, err)
	}

	if err := os.MkdirAll(abs, defaultDirMode); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", abs, err)
	}

	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve output directory %s: %w", abs, err)
	}

	return root, nil
}

// lastByPath drops regular files that a later record with the same path overwrites,
// so concurrent writers never race on one destination.
func lastByPath(files []File) []File {
	last := make(map[string]int, len(files))
	for i, f := range files {
		last[filepath.Clean(f.Path)] = i
	}

	out := make([]File, 0, len(last))
	for i, f := range files {
		if last[filepath.Clean(f.Path)] == i {
			out = append(out, f)
		}
	}
	return out
}

// join maps a record path into the root, refusing lexical escapes.
func (m *materializer) join(op string, f File, reason string) (string, error) {
	dest, err := validate.Join(m.root, f.Path)
	if err != nil {
		if errors.Is(err, validate.ErrEscape) {
			return "", newPathEscapeError(op, f.Path, reason, err)
		}
		return "", fmt.Errorf("invalid entry path %q: %w", f.Path, err)
	}
	return dest, nil
}

func (m *materializer) makeDir(f File) (string, error) {
	dir, err := m.join("mkdir", f, reasonMkdirOutside)
	if err != nil {
		return "", err
	}
	return m.safeMakeDir(dir, f.Path)
}

// safeMakeDir creates dir and any missing ancestors and returns dir's real path.
//
// It walks up from dir until it finds an existing ancestor, checks that the
// ancestor's real path lies inside the root, and then creates the missing levels
// top-down, resolving and re-checking each one. An ancestor that is a symlink
// pointing outside the root is refused at whichever level it appears.
func (m *materializer) safeMakeDir(dir, entry string) (string, error) {
	var missing []string

	cur := dir
	resolvedDir := ""
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			resolvedDir = resolved
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to resolve %s: %w", cur, err)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}

	if !validate.Within(m.root, resolvedDir) {
		return "", newPathEscapeError("mkdir", entry, reasonMkdirOutside, validate.ErrEscape)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		next := filepath.Join(resolvedDir, missing[i])
		if err := os.Mkdir(next, defaultDirMode); err != nil && !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create directory %s: %w", next, err)
		}

		resolved, err := filepath.EvalSymlinks(next)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", next, err)
		}
		if !validate.Within(m.root, resolved) {
			return "", newPathEscapeError("mkdir", entry, reasonMkdirOutside, validate.ErrEscape)
		}
		resolvedDir = resolved
	}

	return resolvedDir, nil
}

// preventWritingThroughSymlink refuses dest when it already exists as a symlink.
// A missing dest is fine.
func preventWritingThroughSymlink(dest, entry string) error {
	info, err := os.Lstat(dest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", dest, err)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		return newPathEscapeError("write", entry, reasonWriteSymlink, nil)
	}
	return nil
}

// prepareParent creates the parent of dest and returns the real, re-checked
// destination path whose parent is guaranteed to be inside the root.
func (m *materializer) prepareParent(dest, entry string) (string, error) {
	if _, err := m.safeMakeDir(filepath.Dir(dest), entry); err != nil {
		return "", err
	}

	if err := preventWritingThroughSymlink(dest, entry); err != nil {
		return "", err
	}

	// Final containment check on the parent, immediately before the write.
	parent, err := filepath.EvalSymlinks(filepath.Dir(dest))
	if err != nil {
		return "", fmt.Errorf("failed to resolve parent of %s: %w", entry, err)
	}
	if !validate.Within(m.root, parent) {
		return "", newPathEscapeError("write", entry, reasonWriteOutside, validate.ErrEscape)
	}

	target := filepath.Join(parent, filepath.Base(dest))
	if target != dest {
		if err := preventWritingThroughSymlink(target, entry); err != nil {
			return "", err
		}
	}

	return target, nil
}

// writeFiles writes regular files concurrently and returns after all of them finish.
func (m *materializer) writeFiles(ctx context.Context, files []File) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.concurrency)

	for _, f := range files {
		g.Go(func() error {
			if err := isDone(gctx, "writing files"); err != nil {
				return err
			}
			return m.writeFile(f)
		})
	}

	return g.Wait()
}

func (m *materializer) writeFile(f File) error {
	dest, err := m.join("write", f, reasonWriteOutside)
	if err != nil {
		return err
	}

	target, err := m.prepareParent(dest, f.Path)
	if err != nil {
		return err
	}

	mode := m.fileMode(f.Mode)
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|openNoFollow, mode.Perm())
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", f.Path, err)
	}

	if _, err := out.Write(f.Data); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write file %s: %w", f.Path, err)
	}

	if m.cfg.preserve {
		if err := out.Chmod(mode); err != nil {
			_ = out.Close()
			return fmt.Errorf("failed to set mode on %s: %w", f.Path, err)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", f.Path, err)
	}

	return setMtime(target, f)
}

// fileMode returns the mode used when creating a regular file. A zero mode is
// treated as unknown.
func (m *materializer) fileMode(mode fs.FileMode) fs.FileMode {
	if mode.Perm() == 0 {
		mode |= defaultFileMode
	}
	if !m.cfg.preserve {
		mode = sanitizeMode(mode)
	}
	return mode
}

// symlink creates a symlink whose target is f.Linkname verbatim. Targets that are
// absolute or resolve outside the root are refused.
func (m *materializer) symlink(f File) error {
	dest, err := m.join("symlink", f, reasonWriteOutside)
	if err != nil {
		return err
	}

	linkPath, err := m.prepareParent(dest, f.Path)
	if err != nil {
		return err
	}

	if _, err := validate.LinkTarget(m.root, linkPath, f.Linkname); err != nil {
		return linkTargetError(f, err)
	}

	if err := os.Symlink(f.Linkname, linkPath); err != nil {
		return fmt.Errorf("failed to create symlink %s: %w", f.Path, err)
	}

	link := createdLink{path: linkPath, target: f.Linkname, file: f}
	if err := m.checkSymlink(link); err != nil {
		return err
	}

	m.symlinks = append(m.symlinks, link)
	return nil
}

// checkSymlink resolves a created symlink through the symlinks it crosses and
// removes it when the result lies outside the root.
func (m *materializer) checkSymlink(link createdLink) error {
	raw := filepath.Dir(link.path) + string(os.PathSeparator) + filepath.FromSlash(link.target)
	resolved, ok := resolveExisting(raw)
	if !ok || validate.Within(m.root, resolved) {
		return nil
	}

	_ = os.Remove(link.path)
	return newPathEscapeError("symlink", link.file.Path, reasonLinkOutside, validate.ErrEscape)
}

// verifySymlinks re-checks every symlink once all of them exist, since a later
// link can change where an earlier one resolves.
func (m *materializer) verifySymlinks() error {
	for _, link := range m.symlinks {
		if err := m.checkSymlink(link); err != nil {
			return err
		}
	}
	return nil
}

// resolveExisting resolves the longest existing prefix of an uncleaned path,
// following symlinks and ".." in order. It reports false when nothing resolves.
func resolveExisting(path string) (string, bool) {
	for p := path; ; {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return resolved, true
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", false
		}

		i := strings.LastIndexByte(p, os.PathSeparator)
		if i <= 0 {
			return "", false
		}
		p = p[:i]
	}
}

// linkTargetError classifies a symlink target validation failure.
func linkTargetError(f File, err error) error {
	if errors.Is(err, validate.ErrEscape) {
		return newPathEscapeError("symlink", f.Path, reasonLinkOutside, err)
	}
	return fmt.Errorf("invalid symlink %s: %w: %w", f.Path, ErrLinkTarget, err)
}

// symlinkFallback hard-links a symlink record to its effective target on
// platforms without native symlinks.
func (m *materializer) symlinkFallback(f File) error {
	dest, err := m.join("symlink", f, reasonWriteOutside)
	if err != nil {
		return err
	}

	linkPath, err := m.prepareParent(dest, f.Path)
	if err != nil {
		return err
	}

	target, err := validate.LinkTarget(m.root, linkPath, f.Linkname)
	if err != nil {
		return linkTargetError(f, err)
	}

	rel, err := filepath.Rel(m.root, target)
	if err != nil {
		return fmt.Errorf("failed to resolve symlink target of %s: %w", f.Path, err)
	}

	return m.link(f, linkPath, filepath.ToSlash(rel))
}

// hardlink creates a hard link at f.Path to the output-root-relative f.Linkname.
func (m *materializer) hardlink(f File) error {
	dest, err := m.join("link", f, reasonWriteOutside)
	if err != nil {
		return err
	}

	linkPath, err := m.prepareParent(dest, f.Path)
	if err != nil {
		return err
	}

	return m.link(f, linkPath, f.Linkname)
}

// link resolves source inside the root and hard-links linkPath to it.
func (m *materializer) link(f File, linkPath, source string) error {
	if err := validate.EntryPath(source); err != nil {
		if errors.Is(err, validate.ErrEscape) {
			return newPathEscapeError("link", f.Path, reasonLinkOutside, err)
		}
		return fmt.Errorf("invalid link target %q for %s: %w: %w", source, f.Path, ErrLinkTarget, err)
	}

	src, err := securejoin.SecureJoin(m.root, filepath.FromSlash(source))
	if err != nil {
		return fmt.Errorf("failed to resolve link target of %s: %w", f.Path, err)
	}
	if !validate.Within(m.root, src) {
		return newPathEscapeError("link", f.Path, reasonLinkOutside, validate.ErrEscape)
	}

	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("link target %s of %s: %w: %w", source, f.Path, ErrLinkTarget, err)
	}
	if info.IsDir() {
		return fmt.Errorf("link target %s of %s is a directory: %w", source, f.Path, ErrLinkTarget)
	}

	// Re-running an extraction replaces an existing regular file.
	if existing, err := os.Lstat(linkPath); err == nil && existing.Mode().IsRegular() {
		if err := os.Remove(linkPath); err != nil {
			return fmt.Errorf("failed to replace %s: %w", f.Path, err)
		}
	}

	if err := os.Link(src, linkPath); err != nil {
		return fmt.Errorf("failed to create hard link %s: %w", f.Path, err)
	}
	return nil
}

// finishDirs applies directory times, and modes when preserving permissions,
// deepest first so that children do not update a parent after it was set.
func (m *materializer) finishDirs(dirs []createdDir) error {
	sort.SliceStable(dirs, func(i, j int) bool {
		return strings.Count(dirs[i].path, string(os.PathSeparator)) >
			strings.Count(dirs[j].path, string(os.PathSeparator))
	})

	for _, d := range dirs {
		if m.cfg.preserve && d.file.Mode != 0 {
			if err := os.Chmod(d.path, d.file.Mode); err != nil {
				return fmt.Errorf("failed to set mode on %s: %w", d.file.Path, err)
			}
		}

		if err := setMtime(d.path, d.file); err != nil {
			return err
		}
	}

	return nil
}

// setMtime sets the record's modification time on path. Zero times are left alone.
func setMtime(path string, f File) error {
	if f.Mtime.IsZero() {
		return nil
	}

	if err := os.Chtimes(path, time.Now(), f.Mtime); err != nil {
		return fmt.Errorf("failed to set mtime on %s: %w", f.Path, err)
	}
	return nil
}
