package player

import "testing"

func TestAttackAttenuationNonDecreasing(t *testing.T) {
	c := &Channel{Attack: 80}
	c.Start(TypePCM)
	prev := c.Attenuation
	for i := 0; i < 500 && c.Envelope == EnvelopeAttack; i++ {
		c.TickEnvelope()
		if c.Attenuation < prev {
			t.Fatalf("attack attenuation decreased: %d -> %d", prev, c.Attenuation)
		}
		prev = c.Attenuation
	}
	if c.Envelope != EnvelopeDecay {
		t.Fatalf("expected attack to reach decay, got state %d", c.Envelope)
	}
}

func TestDecayAndReleaseNonIncreasing(t *testing.T) {
	c := &Channel{Decay: 80, Sustain: 64, Release: 80}
	c.Start(TypePCM)
	c.Envelope = EnvelopeDecay
	c.Attenuation = 0
	prev := c.Attenuation
	for i := 0; i < 2000 && c.Envelope == EnvelopeDecay; i++ {
		c.TickEnvelope()
		if c.Attenuation > prev {
			t.Fatalf("decay attenuation increased: %d -> %d", prev, c.Attenuation)
		}
		prev = c.Attenuation
	}
	if c.Envelope != EnvelopeSustain {
		t.Fatalf("expected decay to reach sustain, got %d", c.Envelope)
	}

	c.Envelope = EnvelopeRelease
	prev = c.Attenuation
	for i := 0; i < 2000 && c.Envelope == EnvelopeRelease; i++ {
		c.TickEnvelope()
		if c.Attenuation > prev {
			t.Fatalf("release attenuation increased: %d -> %d", prev, c.Attenuation)
		}
		prev = c.Attenuation
	}
	if c.Envelope != EnvelopeDead {
		t.Fatalf("expected release to reach dead, got %d", c.Envelope)
	}
}

func TestConvertSustainEdges(t *testing.T) {
	if got := ConvertSustain(0); got != -32768 {
		t.Errorf("sustain 0 = %d, want -32768", got)
	}
	if got := ConvertSustain(127); got != 0 {
		t.Errorf("sustain 127 = %d, want 0", got)
	}
	if got := ConvertSustain(0x80); got != ConvertSustain(127) {
		t.Errorf("high-bit-set sustain should alias 127")
	}
}

func TestPoolAllocatePrefersOrderAndEvictsLowerPriority(t *testing.T) {
	p := NewPool(0xFFFF)
	var evicted int = -99
	ch := p.Allocate(0xFFFF, 10, func(owner int) { evicted = owner })
	if ch == nil || ch.ID != 4 {
		t.Fatalf("expected first allocation to pick channel 4, got %v", ch)
	}
	ch.Active = true
	p.Bind(ch, 2)

	ch2 := p.Allocate(0xFFFF, 20, func(owner int) { evicted = owner })
	if ch2 == nil || ch2.ID == 4 {
		t.Fatalf("expected a different free channel, got %v", ch2)
	}

	// Now force eviction: mask down to only channel 4, higher priority request.
	ch3 := p.Allocate(1<<4, 60, func(owner int) { evicted = owner })
	if ch3 == nil || ch3.ID != 4 {
		t.Fatalf("expected eviction to reclaim channel 4, got %v", ch3)
	}
	if evicted != 2 {
		t.Fatalf("expected evict callback with owner 2, got %d", evicted)
	}
}

func TestPoolAllocateRefusesLowerPriorityEviction(t *testing.T) {
	p := NewPool(0xFFFF)
	ch := p.Allocate(1<<4, 50, nil)
	ch.Active = true
	p.Bind(ch, 0)

	got := p.Allocate(1<<4, 5, nil)
	if got != nil {
		t.Fatalf("expected allocation to be refused, got %v", got)
	}
}
