package tmpfile

import (
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// DefaultDir is the directory names are generated under until SetDirectory
// is called with a non-empty value.
const DefaultDir = "."

// maxHostLen mirrors a 32-byte gethostname buffer with its terminator.
const maxHostLen = 31

// Registry hands out unique scratch file names and remembers every name
// that has not been released, so Shutdown can remove whatever is left.
//
// Use after Shutdown is undefined.
type Registry struct {
	mu   sync.Mutex
	dir  string
	seq  uint64
	live map[string]struct{}

	host string
	pid  int

	// remove deletes a file. Its error is always discarded.
	remove func(string) error
}

// New creates a Registry rooted at DefaultDir.
func New() *Registry {
	return &Registry{
		dir:    DefaultDir,
		live:   make(map[string]struct{}),
		host:   sanitizeHost(hostname()),
		pid:    os.Getpid(),
		remove: os.Remove,
	}
}

// SetDirectory sets the directory used for names generated after it
// returns. An empty dir restores DefaultDir; a single trailing slash is
// dropped. Call it once, before allocation starts on other goroutines.
func (r *Registry) SetDirectory(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case dir == "":
		r.dir = DefaultDir
	case strings.HasSuffix(dir, "/"):
		r.dir = dir[:len(dir)-1]
	default:
		r.dir = dir
	}
}

// Dir returns the configured directory.
func (r *Registry) Dir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

// Name returns a new path of the form {dir}/{hint}_{host}_{pid}_{seq} and
// tracks it until Release or Shutdown. The file itself is not created.
func (r *Registry) Name(hint string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.Grow(len(r.dir) + len(hint) + len(r.host) + 32)
	b.WriteString(r.dir)
	b.WriteByte('/')
	b.WriteString(hint)
	b.WriteByte('_')
	b.WriteString(r.host)
	b.WriteByte('_')
	b.WriteString(strconv.Itoa(r.pid))
	b.WriteByte('_')
	b.WriteString(strconv.FormatUint(r.seq, 10))
	name := b.String()

	r.live[name] = struct{}{}
	r.seq++
	return name
}

// Release removes the file at *name, stops tracking it and clears *name.
// An empty *name is a no-op, so releasing twice is harmless.
func (r *Registry) Release(name *string) {
	if name == nil || *name == "" {
		return
	}
	_ = r.remove(*name) // missing file is fine

	r.mu.Lock()
	delete(r.live, *name)
	r.mu.Unlock()

	*name = ""
}

// Live returns the outstanding names in lexical order.
func (r *Registry) Live() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.live))
	for name := range r.live {
		names = append(names, name)
	}
	r.mu.Unlock()

	slices.Sort(names)
	return names
}

// Shutdown removes every file still tracked and empties the registry. It
// returns the number of names reclaimed. Removal errors are ignored.
func (r *Registry) Shutdown() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.live)
	for name := range r.live {
		_ = r.remove(name)
	}
	clear(r.live)
	return n
}

func sanitizeHost(h string) string {
	if h == "" {
		return "unknown"
	}
	h = strings.Map(func(c rune) rune {
		if c == '/' || c == os.PathSeparator || c == 0 {
			return '_'
		}
		return c
	}, h)
	if len(h) > maxHostLen {
		cut := maxHostLen
		for cut > 0 && !utf8.RuneStart(h[cut]) {
			cut--
		}
		h = h[:cut]
	}
	return h
}
