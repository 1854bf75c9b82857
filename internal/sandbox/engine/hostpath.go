package engine

import (
	"os"
	"path/filepath"
	"strings"
)

// Mapping translates one directory the worker sees to the directory the
// container runtime sees. Needed when the worker itself runs inside a
// container: bind-mount sources are interpreted by the host daemon, not
// by this process.
type Mapping struct {
	ContainerRoot string
	HostRoot      string
}

// PathMap resolves workspace paths to host paths by longest-prefix match.
type PathMap struct {
	entries []Mapping
}

// NewPathMap builds a resolver from the given entries. Entries with an
// empty side are dropped.
func NewPathMap(entries []Mapping) *PathMap {
	kept := make([]Mapping, 0, len(entries))
	for _, m := range entries {
		if m.ContainerRoot == "" || m.HostRoot == "" {
			continue
		}
		kept = append(kept, Mapping{
			ContainerRoot: filepath.Clean(m.ContainerRoot),
			HostRoot:      filepath.Clean(m.HostRoot),
		})
	}
	return &PathMap{entries: kept}
}

// Resolve maps path onto the host filesystem. Paths outside every mapped
// root pass through unchanged.
func (p *PathMap) Resolve(path string) string {
	if path == "" {
		return ""
	}
	clean := filepath.Clean(path)
	longest := ""
	host := ""
	for _, m := range p.entries {
		if clean != m.ContainerRoot && !strings.HasPrefix(clean, m.ContainerRoot+string(os.PathSeparator)) {
			continue
		}
		if len(m.ContainerRoot) > len(longest) {
			longest = m.ContainerRoot
			host = m.HostRoot
		}
	}
	if host == "" {
		return clean
	}
	rel := strings.TrimPrefix(clean, longest)
	rel = strings.TrimPrefix(rel, string(os.PathSeparator))
	return filepath.Join(host, rel)
}
