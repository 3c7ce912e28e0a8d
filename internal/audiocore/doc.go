// Package audiocore implements the real-time audio streaming core of av.
//
// # Architecture Overview
//
// The package consists of a small set of cooperating components:
//
//   - Catalog: enumerates devices through a Backend and caches the result
//   - RingBuffer: block ring written by the producer and read by the callback
//   - CommandChannel: byte ring carrying fixed-size control records
//   - Engine: lifecycle of one hardware stream and the real-time callback
//   - FrameHook: user processing invoked once per callback
//
// # Threads
//
// Two parties touch an open stream. The producer is any goroutine calling
// Engine methods; those calls are serialized by the engine. The real-time
// side is the goroutine or OS thread the Backend uses to invoke the
// callback. The callback never takes a lock shared with the producer, never
// allocates and never logs. Everything it publishes goes through
// sync/atomic and is read back by the Monitor goroutine.
//
// # Buffer Lifecycle
//
// RingBuffer and CommandChannel are allocated on Open and dropped on Close,
// after the backend guarantees that no callback is in flight:
//
//	engine := audiocore.NewEngine(backend, audiocore.Options{})
//	if err := engine.Open(); err != nil {
//	    return err
//	}
//	defer engine.Close()
//	if err := engine.Start(); err != nil {
//	    return err
//	}
//
// # Error Handling
//
// All sentinels are EnhancedErrors tagged with the audiocore component.
// Match them with errors.Is.
package audiocore
