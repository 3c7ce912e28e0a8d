package audiocore

import "time"

// process is the Callback registered with the backend. It runs on the
// real-time thread once per block:
//
//  1. copy the next ring block to output
//  2. apply pending commands
//  3. mix voices
//  4. run the frame hook
//  5. advance the clock
//  6. copy input to the tap
//
// A panic anywhere in the block silences the output and is recorded in
// the stream's Monitor. The clock still advances by one block.
func (e *Engine) process(output, input []float32, frames int) {
	st := e.rt.Load()
	if st == nil {
		clear(output)
		return
	}

	advanced := false
	defer func() {
		if r := recover(); r != nil {
			clear(output)
			st.monitor.recordPanic(r)
			if !advanced {
				st.clock.advance()
			}
		}
	}()

	st.monitor.callbacks.Add(1)

	n := st.ring.ReadBlock(output)
	clear(output[n:])

	if n := st.commands.Drain(st.apply); n > 0 {
		st.monitor.commands.Add(uint64(n))
	}

	channels := st.params.OutputChannels
	st.voices.render(output, channels, min(frames, len(output)/channels))

	if h := e.hook.Load(); h != nil {
		start := time.Now()
		(*h)(st.clock.Seconds(), input, output, frames)
		st.monitor.recordHook(time.Since(start), st.budget)
	}

	st.clock.advance()
	advanced = true

	if st.tap != nil {
		st.tap.write(input)
	}
}

// applyCommand runs on the real-time thread from CommandChannel.Drain
func (e *Engine) applyCommand(st *streamState, cmd Command) {
	switch cmd.Op {
	case OpClear:
		st.voices.clear()
	case OpVoiceAdd:
		st.voices.add(cmd.ID, st.slots.Take(int(cmd.PID)))
	case OpVoiceRemove:
		st.voices.remove(cmd.ID)
	case OpVoiceParam:
		st.voices.setParam(cmd.ID, cmd.PID, cmd.Value)
	case OpVoiceCode:
		st.voices.swap(cmd.ID, st.slots.Take(int(cmd.PID)))
	case OpGeneric:
		if h := e.generic.Load(); h != nil {
			(*h)(cmd.ID, cmd.PID, cmd.Value)
		}
	}
}
