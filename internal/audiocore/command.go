package audiocore

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// Opcode identifies a command record
type Opcode uint8

// Command opcodes. Empty and Skip are single padding bytes; every other
// opcode starts a RecordSize byte record.
const (
	OpEmpty       Opcode = 0
	OpGeneric     Opcode = 128
	OpClear       Opcode = 129
	OpVoiceAdd    Opcode = 130
	OpVoiceRemove Opcode = 131
	OpVoiceParam  Opcode = 132
	OpVoiceCode   Opcode = 133
	OpSkip        Opcode = 255
)

// RecordSize is the encoded size of one command:
// opcode u8, id i32, pid i32, value f64, little-endian.
const RecordSize = 1 + 4 + 4 + 8

// String returns the opcode name used in logs and the API
func (o Opcode) String() string {
	switch o {
	case OpEmpty:
		return "empty"
	case OpGeneric:
		return "generic"
	case OpClear:
		return "clear"
	case OpVoiceAdd:
		return "voice_add"
	case OpVoiceRemove:
		return "voice_remove"
	case OpVoiceParam:
		return "voice_param"
	case OpVoiceCode:
		return "voice_code"
	case OpSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseOpcode maps a name returned by Opcode.String back to the opcode
func ParseOpcode(name string) (Opcode, bool) {
	for _, op := range []Opcode{OpGeneric, OpClear, OpVoiceAdd, OpVoiceRemove, OpVoiceParam, OpVoiceCode} {
		if op.String() == name {
			return op, true
		}
	}
	return 0, false
}

// Command is one decoded record
type Command struct {
	Op    Opcode
	ID    int32
	PID   int32
	Value float64
}

// CommandChannel is a byte ring carrying Commands from producers to the
// real-time consumer. One byte is always left unused so that equal cursors
// mean empty. A record never straddles the end of the ring: when it would,
// the tail is filled with OpEmpty bytes and the record starts at offset 0.
//
// Push may be called from any goroutine. Drain is called by a single
// consumer and takes no lock.
type CommandChannel struct {
	data  []byte
	size  int
	read  atomic.Int64
	write atomic.Int64
	mu    sync.Mutex // serializes producers
}

// NewCommandChannel allocates a channel of size bytes. Sizes below
// RecordSize+1 are raised so at least one record fits.
func NewCommandChannel(size int) *CommandChannel {
	if size < RecordSize+1 {
		size = RecordSize + 1
	}
	return &CommandChannel{
		data: make([]byte, size),
		size: size,
	}
}

// Size returns the ring size in bytes
func (c *CommandChannel) Size() int { return c.size }

// Available returns the free bytes as seen by a producer
func (c *CommandChannel) Available() int {
	return c.available(int(c.read.Load()), int(c.write.Load()))
}

func (c *CommandChannel) available(read, write int) int {
	return (read - write - 1 + c.size) % c.size
}

// Pending returns the bytes written but not yet drained
func (c *CommandChannel) Pending() int {
	return c.size - 1 - c.Available()
}

// Push appends one record. It never blocks on the consumer and returns
// ErrChannelFull when the record and any wrap padding do not fit. The
// padding opcodes are one byte wide on the wire and are rejected with
// ErrInvalidCommand.
func (c *CommandChannel) Push(op Opcode, id, pid int32, value float64) error {
	if op.padding() {
		return fmt.Errorf("%w: %s is a padding opcode", ErrInvalidCommand, op)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w := int(c.write.Load())
	avail := c.available(int(c.read.Load()), w)

	pad := 0
	if c.size-w < RecordSize {
		pad = c.size - w
	}
	if avail < pad+RecordSize {
		return ErrChannelFull
	}

	if pad > 0 {
		clear(c.data[w:])
		w = 0
	}

	rec := c.data[w : w+RecordSize]
	rec[0] = byte(op)
	binary.LittleEndian.PutUint32(rec[1:5], uint32(id))
	binary.LittleEndian.PutUint32(rec[5:9], uint32(pid))
	binary.LittleEndian.PutUint64(rec[9:17], math.Float64bits(value))

	w += RecordSize
	if w == c.size {
		w = 0
	}
	c.write.Store(int64(w))
	return nil
}

// PushCommand is Push for a decoded Command
func (c *CommandChannel) PushCommand(cmd Command) error {
	return c.Push(cmd.Op, cmd.ID, cmd.PID, cmd.Value)
}

// Drain applies every record written before the call, in order, and
// returns how many records were seen. Padding bytes are skipped. Records
// with unknown opcodes are consumed without calling apply.
//
// Each record is consumed before apply runs, so a record whose apply
// panics is dropped rather than replayed by the next Drain.
//
// Consumer only.
func (c *CommandChannel) Drain(apply func(Command)) int {
	w := int(c.write.Load())
	r := int(c.read.Load())
	n := 0

	for r != w {
		op := Opcode(c.data[r])
		if op.padding() {
			r++
			if r == c.size {
				r = 0
			}
			continue
		}

		rec := c.data[r : r+RecordSize]
		cmd := Command{
			Op:    op,
			ID:    int32(binary.LittleEndian.Uint32(rec[1:5])),
			PID:   int32(binary.LittleEndian.Uint32(rec[5:9])),
			Value: math.Float64frombits(binary.LittleEndian.Uint64(rec[9:17])),
		}
		r += RecordSize
		if r == c.size {
			r = 0
		}
		n++

		// rec may be overwritten once read is published
		c.read.Store(int64(r))
		if op.known() {
			apply(cmd)
		}
	}

	c.read.Store(int64(r))
	return n
}

func (o Opcode) known() bool {
	return o >= OpGeneric && o <= OpVoiceCode
}

func (o Opcode) padding() bool {
	return o == OpEmpty || o == OpSkip
}
