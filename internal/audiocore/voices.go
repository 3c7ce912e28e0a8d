package audiocore

import (
	"fmt"
	"sync/atomic"
)

// Processor renders one voice. Process adds frames*channels interleaved
// samples into output; it must not overwrite what is already there.
// Both methods run on the real-time thread.
type Processor interface {
	Process(output []float32, channels, frames int)
	SetParam(pid int32, value float64)
}

// CodeSlots hands preallocated processors from producers to the real-time
// side. A producer stages a processor in a free slot and then pushes a
// command naming the slot; the consumer takes it, leaving the slot free.
type CodeSlots struct {
	slots []atomic.Pointer[Processor]
}

// NewCodeSlots creates n empty slots
func NewCodeSlots(n int) *CodeSlots {
	return &CodeSlots{slots: make([]atomic.Pointer[Processor], n)}
}

// Len returns the number of slots
func (s *CodeSlots) Len() int { return len(s.slots) }

// Stage places p in slot if it is free
func (s *CodeSlots) Stage(slot int, p Processor) bool {
	if slot < 0 || slot >= len(s.slots) {
		return false
	}
	return s.slots[slot].CompareAndSwap(nil, &p)
}

// StageAny places p in the first free slot at or after hint, wrapping
func (s *CodeSlots) StageAny(hint int, p Processor) (int, error) {
	n := len(s.slots)
	for i := range n {
		slot := (hint + i) % n
		if s.Stage(slot, p) {
			return slot, nil
		}
	}
	return -1, fmt.Errorf("%w: all %d slots staged", ErrVoiceLimit, n)
}

// Take empties slot and returns its processor, or nil
func (s *CodeSlots) Take(slot int) Processor {
	if slot < 0 || slot >= len(s.slots) {
		return nil
	}
	p := s.slots[slot].Swap(nil)
	if p == nil {
		return nil
	}
	return *p
}

type voice struct {
	id     int32
	active bool
	proc   Processor
}

// VoiceTable is the fixed set of voices mixed into the output. It is owned
// by the real-time thread and only mutated by applied commands.
type VoiceTable struct {
	voices  []voice
	active  atomic.Int32
	dropped atomic.Uint64
}

// NewVoiceTable preallocates capacity voices
func NewVoiceTable(capacity int) *VoiceTable {
	return &VoiceTable{voices: make([]voice, capacity)}
}

// Active returns the number of live voices
func (t *VoiceTable) Active() int { return int(t.active.Load()) }

// Dropped returns how many adds found the table full
func (t *VoiceTable) Dropped() uint64 { return t.dropped.Load() }

func (t *VoiceTable) find(id int32) int {
	for i := range t.voices {
		if t.voices[i].active && t.voices[i].id == id {
			return i
		}
	}
	return -1
}

// add installs p as voice id, replacing an existing voice with that id
func (t *VoiceTable) add(id int32, p Processor) {
	if p == nil {
		return
	}
	if i := t.find(id); i >= 0 {
		t.voices[i].proc = p
		return
	}
	for i := range t.voices {
		if !t.voices[i].active {
			t.voices[i] = voice{id: id, active: true, proc: p}
			t.active.Add(1)
			return
		}
	}
	t.dropped.Add(1)
}

func (t *VoiceTable) remove(id int32) {
	if i := t.find(id); i >= 0 {
		t.voices[i] = voice{}
		t.active.Add(-1)
	}
}

func (t *VoiceTable) setParam(id, pid int32, value float64) {
	if i := t.find(id); i >= 0 {
		t.voices[i].proc.SetParam(pid, value)
	}
}

// swap replaces the processor of a live voice
func (t *VoiceTable) swap(id int32, p Processor) {
	if p == nil {
		return
	}
	if i := t.find(id); i >= 0 {
		t.voices[i].proc = p
	}
}

func (t *VoiceTable) clear() {
	clear(t.voices)
	t.active.Store(0)
}

func (t *VoiceTable) render(output []float32, channels, frames int) {
	if t.active.Load() == 0 {
		return
	}
	for i := range t.voices {
		if t.voices[i].active {
			t.voices[i].proc.Process(output, channels, frames)
		}
	}
}
