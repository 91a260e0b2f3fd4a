package demux

import (
	"sync"

	bmff "github.com/tetsuo/mp4demux"
)

// Handler decodes a box, or finalizes it when attached with After.
// A decode hook runs once when the box header has been read, with the
// source positioned at the start of the body. Returning
// bmff.ErrInsufficientData makes the whole step retry later; any other
// error is fatal.
type Handler func(d *Demuxer) error

// node is one edge of the registry trie, keyed by box type.
type node struct {
	children  map[bmff.BoxType]*node
	container bool
	decode    Handler
	after     Handler
}

func (n *node) child(t bmff.BoxType) *node {
	if n == nil {
		return nil
	}
	return n.children[t]
}

func (n *node) ensure(t bmff.BoxType) *node {
	c, ok := n.children[t]
	if !ok {
		if n.children == nil {
			n.children = make(map[bmff.BoxType]*node)
		}
		c = &node{}
		n.children[t] = c
	}
	return c
}

// Registry maps box paths to handlers. Paths are dot-joined four byte
// types, outermost first, e.g. "moov.trak.mdia.hdlr". Every proper prefix of
// a registered path is a container: the driver descends into it instead of
// skipping its body.
//
// A Registry is built once and then shared read-only by any number of
// demuxers.
type Registry struct {
	root node
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register sets the decode hook for path and marks its ancestors as
// containers. It panics if path is malformed.
func (r *Registry) Register(path string, fn Handler) {
	n := r.walk(bmff.MustParsePath(path))
	n.decode = fn
}

// After sets the hook run once the box at path and all of its children
// have been consumed. It panics if path is malformed.
func (r *Registry) After(path string, fn Handler) {
	n := r.walk(bmff.MustParsePath(path))
	n.after = fn
}

func (r *Registry) walk(p bmff.Path) *node {
	n := &r.root
	for i, t := range p {
		n = n.ensure(t)
		if i < len(p)-1 {
			n.container = true
		}
	}
	return n
}

// Lookup reports the hooks registered for p.
func (r *Registry) Lookup(p bmff.Path) (container, decode, after bool) {
	n := &r.root
	for _, t := range p {
		if n = n.child(t); n == nil {
			return false, false, false
		}
	}
	return n.container, n.decode != nil, n.after != nil
}

// StandardRegistry returns the registry holding every handler the demuxer
// ships with. It is built on first use.
var StandardRegistry = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	registerTrackHandlers(r)
	registerMetadataHandlers(r)
	r.Register("mdat", (*Demuxer).readMdat)
	r.Register("moov", (*Demuxer).readMoov)
	r.After("moov", (*Demuxer).afterMoov)
	return r
})
