package contractService

import (
	"sort"
	"sync"

	"github.com/dandelion-network/taskctl/pkg/types"
)

// taskCache holds decoded tasks by id plus the last full listing. Values are
// cloned on the way in and out.
//
// Every invalidation advances gen. A load records the generation it started
// at and its results are only stored for entries not invalidated since.
type taskCache struct {
	mu        sync.RWMutex
	tasks     map[uint64]*types.Task
	listed    []uint64
	listValid bool

	gen       uint64
	dropped   map[uint64]uint64
	listGen   uint64
	clearedAt uint64
}

func newTaskCache() *taskCache {
	return &taskCache{
		tasks:   map[uint64]*types.Task{},
		dropped: map[uint64]uint64{},
	}
}

// generation is captured before a backend load and passed back to put or putList.
func (c *taskCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *taskCache) get(id uint64) (*types.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// stale reports whether id was invalidated after generation since. Callers hold mu.
func (c *taskCache) stale(id, since uint64) bool {
	return c.clearedAt > since || c.dropped[id] > since
}

// put stores t unless it was invalidated after the load began. It reports
// whether the value was stored.
func (c *taskCache) put(t *types.Task, since uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale(t.Id, since) {
		return false
	}
	c.tasks[t.Id] = t.Clone()
	return true
}

func (c *taskCache) list() ([]*types.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.listValid {
		return nil, false
	}
	out := make([]*types.Task, 0, len(c.listed))
	for _, id := range c.listed {
		t, ok := c.tasks[id]
		if !ok {
			return nil, false
		}
		out = append(out, t.Clone())
	}
	return out, true
}

// putList stores a full listing loaded from generation since. Entries
// invalidated during the load are skipped and the listing is then left
// invalid so the next read goes back to the ledger.
func (c *taskCache) putList(tasks []*types.Task, since uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	complete := c.clearedAt <= since && c.listGen <= since
	listed := make([]uint64, 0, len(tasks))
	for _, t := range tasks {
		if c.stale(t.Id, since) {
			complete = false
			continue
		}
		c.tasks[t.Id] = t.Clone()
		listed = append(listed, t.Id)
	}
	if complete {
		c.listed = listed
		c.listValid = true
	}
}

// invalidate drops one task and the listing that contains it.
func (c *taskCache) invalidate(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.dropped[id] = c.gen
	delete(c.tasks, id)
	c.listValid = false
}

func (c *taskCache) invalidateList() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.listGen = c.gen
	c.listValid = false
}

func (c *taskCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.clearedAt = c.gen
	c.dropped = map[uint64]uint64{}
	c.tasks = map[uint64]*types.Task{}
	c.listed = nil
	c.listValid = false
}

func (c *taskCache) ids() []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]uint64, 0, len(c.tasks))
	for id := range c.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// keyedLocks serializes work per task id. Entries are reference counted and
// removed once no goroutine holds or waits on them.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[uint64]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: map[uint64]*keyedLock{}}
}

// lock blocks until id is free and returns the matching unlock.
func (k *keyedLocks) lock(id uint64) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyedLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
