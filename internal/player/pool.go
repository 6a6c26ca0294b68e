package player

// allocationOrder is the fixed priority search order channel
// allocation walks, per section 4.6.
var allocationOrder = [16]int{4, 5, 6, 7, 2, 0, 3, 1, 8, 9, 10, 11, 14, 12, 15, 13}

// Pool owns the 16 hardware channels and implements the allocation
// rule of section 4.6.
type Pool struct {
	Channels [16]*Channel
	Mask     uint16 // player's allowed channel mask, intersected with every request
}

// NewPool builds 16 inactive channels.
func NewPool(mask uint16) *Pool {
	p := &Pool{Mask: mask}
	for i := range p.Channels {
		p.Channels[i] = &Channel{ID: i, owner: -1}
	}
	return p
}

// Allocate searches allocationOrder for the best channel matching
// mask (already intersected with p.Mask) at priority, evicting a
// lower-or-equal-priority occupant if needed. onEvict, if non-nil, is
// called with the evicted channel's previous owner slot before reuse.
// Returns nil if no channel qualifies.
func (p *Pool) Allocate(mask uint16, priority uint8, onEvict func(evictedOwner int)) *Channel {
	mask &= p.Mask
	var best *Channel
	var bestMixed uint32
	for _, id := range allocationOrder {
		if mask&(1<<uint(id)) == 0 {
			continue
		}
		ch := p.Channels[id]
		if !ch.Active {
			best = ch
			break
		}
		mixed := mixedVolume(ch)
		if best == nil || ch.Priority < best.Priority || (ch.Priority == best.Priority && mixed < bestMixed) {
			best = ch
			bestMixed = mixed
		}
	}
	if best == nil {
		return nil
	}
	if best.Active {
		if best.Priority > priority {
			return nil
		}
		if onEvict != nil && best.owner >= 0 {
			onEvict(best.owner)
		}
		best.Sync.Stop = true
		best.Active = false
	}
	best.Priority = priority
	best.owner = -1
	return best
}

// mixedVolume computes the "left-shift-4 then right-shift by divisor
// table" comparison value from section 4.6.
func mixedVolume(c *Channel) uint32 {
	return uint32(c.Reg.Volume) << 4 >> divisorShift[c.Reg.Div]
}

// Bind records which track slot currently owns a channel, so a future
// eviction can tell that track to forget it.
func (p *Pool) Bind(ch *Channel, owner int) {
	ch.owner = owner
}
