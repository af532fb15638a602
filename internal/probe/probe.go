// Package probe checks whether a request path exists in the local asset tree.
package probe

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Presence is the result of a probe.
type Presence int

const (
	// Absent means nothing exists at the path.
	Absent Presence = iota
	// Present means the path exists and could be opened.
	Present
	// ProbeError means the probe failed for another reason, such as
	// permissions or a path escaping the root.
	ProbeError
)

func (p Presence) String() string {
	switch p {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "probe_error"
	}
}

// Prober probes paths below a single directory.
type Prober struct {
	dir string
}

// New creates a Prober rooted at dir. The directory does not have to exist;
// probing under a missing root reports Absent.
func New(dir string) *Prober {
	return &Prober{dir: dir}
}

// Dir returns the root directory.
func (p *Prober) Dir() string {
	return p.dir
}

// Path returns the filesystem path a request path maps to.
func (p *Prober) Path(name string) string {
	return filepath.Join(p.dir, filepath.FromSlash(name))
}

// Probe opens name relative to the root and closes it again. Opening goes
// through os.Root, so ".." and symlinks cannot reach outside the root.
func (p *Prober) Probe(name string) (Presence, error) {
	root, err := os.OpenRoot(p.dir)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = root.Close() }()

	rel := strings.TrimLeft(name, "/")
	if rel == "" {
		rel = "."
	}
	f, err := root.Open(filepath.FromSlash(rel))
	if err != nil {
		return classify(err)
	}
	_ = f.Close()
	return Present, nil
}

func classify(err error) (Presence, error) {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return Absent, nil
	}
	return ProbeError, err
}
