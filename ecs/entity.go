package ecs

// EntityId encodes a generation (upper 32 bits) and a slot index (lower 32 bits).
// Ids stay stable while components are added or removed; the generation is bumped
// when the entity is deleted so stale ids never resolve to a reused slot.
type EntityId uint64

// NewEntityId creates an EntityId from a slot index and generation
func NewEntityId(index uint32, generation uint32) EntityId {
	return EntityId(uint64(generation)<<32 | uint64(index))
}

// Generation extracts the generation from the entity ID
func (e EntityId) Generation() uint32 {
	return uint32(e >> 32)
}

// Index extracts the slot index from the entity ID
func (e EntityId) Index() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

// entityPool hands out entity ids with generational slots and a free list.
// Generations start at 1 so that 0 is never a live id.
type entityPool struct {
	generations []uint32
	freeList    []uint32
}

func newEntityPool() *entityPool {
	return &entityPool{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *entityPool) create() EntityId {
	if len(p.freeList) > 0 {
		idx := p.freeList[len(p.freeList)-1]
		p.freeList = p.freeList[:len(p.freeList)-1]
		return NewEntityId(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 1)
	return NewEntityId(idx, 1)
}

func (p *entityPool) alive(id EntityId) bool {
	idx := id.Index()
	if int(idx) >= len(p.generations) {
		return false
	}
	return p.generations[idx] == id.Generation()
}

func (p *entityPool) destroy(id EntityId) bool {
	if !p.alive(id) {
		return false
	}
	idx := id.Index()
	p.generations[idx]++
	if p.generations[idx] == 0 {
		p.generations[idx] = 1
	}
	p.freeList = append(p.freeList, idx)
	return true
}

func (p *entityPool) count() int {
	return len(p.generations) - len(p.freeList)
}
