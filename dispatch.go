package graphcodec

import "fmt"

// Record headers. Every record starts with one uvarint header; values from
// headerTagBase up carry the tag of an untracked value inline.
const (
	headerNull    = 0
	headerRef     = 1
	headerInline  = 2
	headerTagBase = 3
)

// DefaultMaxDepth leaves record nesting unbounded. Go stacks grow on
// demand, so deep acyclic chains encode and decode like shallow ones.
const DefaultMaxDepth = 0

// writeTagged runs the encoder of bd. The header and tag are already written.
func (w *WriteContext) writeTagged(bd *Binding, v any) error {
	w.depth++
	defer func() { w.depth-- }()
	if w.maxDepth > 0 && w.depth > w.maxDepth {
		return fmt.Errorf("%w: limit %d", ErrDepthExceeded, w.maxDepth)
	}
	if err := bd.encode(w, v); err != nil {
		return err
	}
	return w.Err()
}

// readTagged dispatches tag straight to its decoder. id is the identity the
// record reserved, or -1 for untracked values.
func (r *ReadContext) readTagged(tag uint64, id int) (any, error) {
	if tag >= uint64(r.bindings.Len()) {
		return nil, fmt.Errorf("%w: tag %d out of range (%d bindings)", ErrCorruptStream, tag, r.bindings.Len())
	}
	bd := &r.bindings.list[tag]

	r.depth++
	r.pending = append(r.pending, id)
	defer func() {
		r.depth--
		r.pending = r.pending[:len(r.pending)-1]
	}()
	if r.maxDepth > 0 && r.depth > r.maxDepth {
		return nil, fmt.Errorf("%w: limit %d", ErrDepthExceeded, r.maxDepth)
	}

	v, err := bd.decode(r)
	if err != nil {
		return nil, err
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return v, nil
}
