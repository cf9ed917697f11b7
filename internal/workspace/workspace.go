// Package workspace implements the per-session sandboxed filesystem tree
// (C2): a fixed template of files a session's tools read and write, wiped
// after every terminal response.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// TemplateFile is one file seeded into a freshly bootstrapped workspace.
type TemplateFile struct {
	Name    string
	Content string
}

// DefaultTemplateFiles returns the fixed seed set from spec §4.2.
func DefaultTemplateFiles() []TemplateFile {
	return []TemplateFile{
		{Name: "progress.md", Content: "# Progress\n\nTrack completed and outstanding research steps here.\n"},
		{Name: "notes.md", Content: "# Notes\n\nScratch space for facts gathered during research.\n"},
		{Name: "draft.md", Content: "# Draft\n\nWork-in-progress draft of the final answer or artifact.\n"},
	}
}

// Workspace is the rooted directory for one session+mode. It is owned
// exclusively by the session's engine (spec §5); tools must go through its
// Read/Write/List/Edit operations so every path is containment-checked.
type Workspace struct {
	root string

	watchMu sync.Mutex
	watcher *Watcher
}

func (w *Workspace) setWatcher(wa *Watcher) {
	w.watchMu.Lock()
	w.watcher = wa
	w.watchMu.Unlock()
}

func (w *Workspace) activeWatcher() *Watcher {
	w.watchMu.Lock()
	defer w.watchMu.Unlock()
	return w.watcher
}

// New returns a Workspace bound to root without touching the filesystem.
// Call Init to materialize it.
func New(root string) *Workspace {
	return &Workspace{root: root}
}

// Root returns the workspace's root directory.
func (w *Workspace) Root() string { return w.root }

// Init lazily creates the workspace tree: the template files (seeded only
// if absent), cache/, analysis/{images,data,reports}/, and conversations/.
func (w *Workspace) Init() error {
	dirs := []string{
		w.root,
		filepath.Join(w.root, "cache"),
		filepath.Join(w.root, "analysis", "images"),
		filepath.Join(w.root, "analysis", "data"),
		filepath.Join(w.root, "analysis", "reports"),
		filepath.Join(w.root, "conversations"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("workspace: mkdir %s: %w", d, err)
		}
	}
	for _, f := range DefaultTemplateFiles() {
		p := filepath.Join(w.root, f.Name)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			if err := os.WriteFile(p, []byte(f.Content), 0o644); err != nil {
				return fmt.Errorf("workspace: seed %s: %w", f.Name, err)
			}
		}
	}
	return nil
}

// Cleanup removes the workspace root recursively. Per spec §4.2, any
// artifact must be copied out to the persisted ChatResponse before this
// runs; Cleanup itself does not care about artifact contents.
func (w *Workspace) Cleanup() error {
	if w.root == "" {
		return nil
	}
	if wa := w.activeWatcher(); wa != nil {
		wa.Stop()
	}
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("workspace: cleanup %s: %w", w.root, err)
	}
	return nil
}

// ErrEscapesRoot is returned when a resolved path falls outside the
// workspace root.
var ErrEscapesRoot = fmt.Errorf("workspace: path escapes workspace root")

// Resolve joins rel onto the workspace root and verifies, after symlink and
// `..` resolution, that the result is still a descendant of the root
// (spec invariant (d)). It never requires the target to exist.
func (w *Workspace) Resolve(rel string) (string, error) {
	clean := filepath.Join(w.root, rel)
	rootAbs, err := filepath.Abs(w.root)
	if err != nil {
		return "", fmt.Errorf("workspace: resolve root: %w", err)
	}
	targetAbs, err := filepath.Abs(clean)
	if err != nil {
		return "", fmt.Errorf("workspace: resolve target: %w", err)
	}

	// Resolve symlinks for any existing prefix of the path so a symlink
	// planted inside the workspace cannot point outside it.
	resolvedRoot, err := evalExistingSymlinks(rootAbs)
	if err != nil {
		return "", err
	}
	resolvedTarget, err := evalExistingSymlinks(targetAbs)
	if err != nil {
		return "", err
	}

	rel2, err := filepath.Rel(resolvedRoot, resolvedTarget)
	if err != nil || rel2 == ".." || strings.HasPrefix(rel2, ".."+string(filepath.Separator)) {
		return "", ErrEscapesRoot
	}
	return targetAbs, nil
}

// evalExistingSymlinks resolves symlinks along the longest existing prefix
// of p, leaving any non-existent suffix untouched (so Resolve works for
// paths about to be created by a write).
func evalExistingSymlinks(p string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(p)
	if parent == p {
		return p, nil
	}
	resolvedParent, err := evalExistingSymlinks(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(p)), nil
}

// Read returns the content of the file at rel.
func (w *Workspace) Read(rel string) (string, error) {
	p, err := w.Resolve(rel)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("workspace: read %s: %w", rel, err)
	}
	return string(data), nil
}

// Write writes content to rel, overwriting unless append is true.
func (w *Workspace) Write(rel, content string, appendMode bool) error {
	p, err := w.Resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("workspace: mkdir for %s: %w", rel, err)
	}
	if appendMode {
		f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("workspace: open %s: %w", rel, err)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return fmt.Errorf("workspace: append %s: %w", rel, err)
		}
		return nil
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return fmt.Errorf("workspace: write %s: %w", rel, err)
	}
	return nil
}

// Entry is one row of a recursive directory listing.
type Entry struct {
	Path  string // workspace-relative, slash-separated
	Size  int64
	IsDir bool
}

// List walks rel (or the whole root, if rel is empty) recursively. A
// full-tree listing is served from the watcher's cache when one is active
// and nothing changed since the last walk.
func (w *Workspace) List(rel string) ([]Entry, error) {
	if rel == "" {
		if wa := w.activeWatcher(); wa != nil {
			return wa.entries()
		}
	}
	return w.walk(rel)
}

func (w *Workspace) walk(rel string) ([]Entry, error) {
	p, err := w.Resolve(rel)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == p {
			return nil
		}
		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Path:  filepath.ToSlash(relPath),
			Size:  info.Size(),
			IsDir: info.IsDir(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace: list %s: %w", rel, err)
	}
	return entries, nil
}

// Edit performs a single-occurrence find-and-replace. It fails if oldText
// occurs zero or more-than-one times in the file.
func (w *Workspace) Edit(rel, oldText, newText string) error {
	content, err := w.Read(rel)
	if err != nil {
		return err
	}
	n := strings.Count(content, oldText)
	switch n {
	case 0:
		return fmt.Errorf("workspace: edit %s: old_text not found", rel)
	case 1:
		// fall through
	default:
		return fmt.Errorf("workspace: edit %s: old_text is ambiguous (%d occurrences)", rel, n)
	}
	updated := strings.Replace(content, oldText, newText, 1)
	return w.Write(rel, updated, false)
}

var (
	nonWordSpaceHyphen = regexp.MustCompile(`[^\w\s-]`)
	whitespaceRun      = regexp.MustCompile(`\s+`)
	underscoreRun      = regexp.MustCompile(`_+`)
)

// SanitizeCacheName implements the cache-filename sanitizer from spec §4.2:
// strip everything outside word/whitespace/hyphen, collapse whitespace to
// underscore, collapse underscore runs, truncate to 100 chars, default to
// "untitled".
func SanitizeCacheName(title string) string {
	s := nonWordSpaceHyphen.ReplaceAllString(title, "")
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = underscoreRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "untitled"
	}
	return s
}

// CachePath returns a collision-free path under cache/ for title, appending
// a numeric suffix (e.g. "_2") when the sanitized name is already taken.
func (w *Workspace) CachePath(title string) (string, error) {
	base := SanitizeCacheName(title)
	rel := filepath.Join("cache", base+".md")
	for i := 2; ; i++ {
		p, err := w.Resolve(rel)
		if err != nil {
			return "", err
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return rel, nil
		}
		rel = filepath.Join("cache", fmt.Sprintf("%s_%d.md", base, i))
	}
}
