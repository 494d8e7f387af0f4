package session

import (
	"sync"

	"minute/pipeline"
)

// Resources holds every live handle of one session: the per-source
// pipelines and the capture devices beneath them. Exactly one release
// path exists and it cannot run partially.
type Resources struct {
	dual *pipeline.Dual

	once sync.Once
}

func NewResources(dual *pipeline.Dual) *Resources {
	return &Resources{dual: dual}
}

// Release tears down pipelines and devices together, exactly once.
func (r *Resources) Release() {
	r.once.Do(func() {
		if r.dual != nil {
			r.dual.Close()
		}
	})
}

func (r *Resources) Emitted() int64 {
	if r.dual == nil {
		return 0
	}
	return r.dual.Emitted()
}

func (r *Resources) Dropped() int64 {
	if r.dual == nil {
		return 0
	}
	return r.dual.Dropped()
}
