package registry

import "sync/atomic"

// atomicSnapshot is an atomic.Pointer[snapshot] wrapper kept as its own type
// so the zero value is immediately usable before the first store.
type atomicSnapshot struct {
	p atomic.Pointer[snapshot]
}

func (a *atomicSnapshot) load() *snapshot {
	if s := a.p.Load(); s != nil {
		return s
	}
	return emptySnapshot()
}

func (a *atomicSnapshot) store(s *snapshot) {
	a.p.Store(s)
}
