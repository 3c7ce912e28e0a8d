package audiocore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/avhost/av/internal/errors"
	"github.com/avhost/av/internal/logger"
)

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	CommandBufferSize int           // command channel bytes, default 1 MiB
	MaxVoices         int           // voice table capacity, default 64
	CodeSlots         int           // processor staging slots, default 64
	InputTapSeconds   float64       // input tap capacity, 0 disables the tap
	CatalogTTL        time.Duration // device enumeration cache lifetime
	MonitorInterval   time.Duration // status log period, negative disables the monitor
	Observer          SessionObserver
}

func (o Options) withDefaults() Options {
	if o.CommandBufferSize <= 0 {
		o.CommandBufferSize = DefaultCommandBufferSize
	}
	if o.MaxVoices <= 0 {
		o.MaxVoices = DefaultMaxVoices
	}
	if o.CodeSlots <= 0 {
		o.CodeSlots = DefaultCodeSlots
	}
	if o.MonitorInterval == 0 {
		o.MonitorInterval = DefaultMonitorInterval
	}
	return o
}

// SessionObserver is notified when streams open and close. Calls are made
// with the engine lock held and must not call back into the engine.
type SessionObserver interface {
	StreamOpened(info StreamInfo)
	StreamClosed(info StreamInfo, stats Stats)
}

// StreamInfo describes the engine's current or last stream
type StreamInfo struct {
	SessionID      string      `json:"sessionId,omitempty"`
	Backend        string      `json:"backend"`
	State          string      `json:"state"`
	SampleRate     float64     `json:"sampleRate"`
	BlockSize      int         `json:"blockSize"`
	Blocks         int         `json:"blocks,omitempty"`
	Lag            float64     `json:"lag,omitempty"`
	StreamTime     float64     `json:"streamTime"`
	Output         *DeviceInfo `json:"output,omitempty"`
	OutputChannels int         `json:"outputChannels,omitempty"`
	Input          *DeviceInfo `json:"input,omitempty"`
	InputChannels  int         `json:"inputChannels,omitempty"`
	OpenedAt       time.Time   `json:"openedAt,omitzero"`
}

// streamState is everything the callback needs for one open stream
type streamState struct {
	id       string
	params   StreamParams
	ring     *RingBuffer
	commands *CommandChannel
	clock    *StreamClock
	voices   *VoiceTable
	slots    *CodeSlots
	monitor  *Monitor
	tap      *InputTap
	budget   time.Duration
	apply    func(Command)
	openedAt time.Time
	locked   [][]byte // buffers pinned with mlock
}

// Engine owns the lifecycle of one hardware stream:
// Closed -> Configured -> Opened -> Running -> Opened -> Closed.
//
// Lifecycle methods are safe for concurrent use. Producer methods (Ring,
// Push and the voice helpers) may be called from any goroutine while a
// stream is open.
type Engine struct {
	backend Backend
	catalog *Catalog
	opts    Options

	mu         sync.Mutex
	state      State
	configured bool
	requested  StreamConfig
	resolved   StreamParams
	stream     Stream
	last       StreamInfo

	stopWatch context.CancelFunc
	watchWG   sync.WaitGroup

	rt      atomic.Pointer[streamState]
	hook    atomic.Pointer[FrameHook]
	generic atomic.Pointer[GenericHandler]
}

// NewEngine creates a closed engine driving backend
func NewEngine(backend Backend, opts Options) *Engine {
	opts = opts.withDefaults()
	return &Engine{
		backend: backend,
		catalog: NewCatalog(backend, opts.CatalogTTL),
		opts:    opts,
	}
}

// SetObserver replaces the session observer from the next Open or Close on.
// nil removes it.
func (e *Engine) SetObserver(o SessionObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Observer = o
}

// Backend returns the backend the engine drives
func (e *Engine) Backend() Backend { return e.backend }

// Catalog returns the engine's device catalog
func (e *Engine) Catalog() *Catalog { return e.catalog }

// State returns the lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Config returns the requested configuration with defaults applied
func (e *Engine) Config() StreamConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requested
}

// Params returns the parameters resolved by the last Configure or Open
func (e *Engine) Params() StreamParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resolved
}

// Configure validates cfg against the device catalog and stores it for the
// next Open. It fails with ErrInvalidState while a stream is open.
func (e *Engine) Configure(cfg StreamConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateOpened || e.state == StateRunning {
		return fmt.Errorf("%w: cannot configure while %s", ErrInvalidState, e.state)
	}

	params, err := e.resolve(cfg)
	if err != nil {
		return err
	}

	e.requested = cfg.withDefaults()
	e.resolved = params
	e.configured = true
	e.state = StateConfigured
	return nil
}

// resolve turns a requested config into backend parameters
func (e *Engine) resolve(cfg StreamConfig) (StreamParams, error) {
	if cfg.SampleRate < 0 || cfg.BlockSize < 0 || cfg.InputChannels < 0 || cfg.OutputChannels < 0 {
		return StreamParams{}, fmt.Errorf("%w: negative value in %+v", ErrInvalidConfig, cfg)
	}
	cfg = cfg.withDefaults()
	if float64(cfg.BlockSize) > cfg.SampleRate {
		return StreamParams{}, fmt.Errorf("%w: block size %d exceeds sample rate %.0f",
			ErrInvalidConfig, cfg.BlockSize, cfg.SampleRate)
	}

	if _, err := e.catalog.Devices(); err != nil {
		return StreamParams{}, err
	}

	params := StreamParams{SampleRate: cfg.SampleRate, BlockSize: cfg.BlockSize}

	var out DeviceInfo
	var err error
	switch {
	case cfg.OutputDevice == DefaultDevice:
		out, err = e.catalog.DefaultOutput()
		if errors.Is(err, ErrNoDefaultDevice) {
			return StreamParams{}, fmt.Errorf("%w: no output capable device", ErrInvalidDevice)
		}
	case cfg.OutputDevice < 0:
		return StreamParams{}, fmt.Errorf("%w: output device %d", ErrInvalidDevice, cfg.OutputDevice)
	default:
		out, err = e.catalog.Device(cfg.OutputDevice)
	}
	if err != nil {
		return StreamParams{}, err
	}
	if out.MaxOutputChannels == 0 {
		return StreamParams{}, fmt.Errorf("%w: device %d has no output channels", ErrInvalidDevice, out.Index)
	}
	params.Output = out
	params.OutputChannels = min(cfg.OutputChannels, out.MaxOutputChannels)

	switch {
	case cfg.InputDevice == NoDevice:
	case cfg.InputDevice == DefaultDevice:
		in, err := e.catalog.DefaultInput()
		switch {
		case err == nil:
			params.Input = &in
			params.InputChannels = min(cfg.InputChannels, in.MaxInputChannels)
		case !errors.Is(err, ErrNoDefaultDevice):
			return StreamParams{}, err
		}
	case cfg.InputDevice < 0:
		return StreamParams{}, fmt.Errorf("%w: input device %d", ErrInvalidDevice, cfg.InputDevice)
	default:
		in, err := e.catalog.Device(cfg.InputDevice)
		if err != nil {
			return StreamParams{}, err
		}
		if in.MaxInputChannels == 0 {
			return StreamParams{}, fmt.Errorf("%w: device %d has no input channels", ErrInvalidDevice, in.Index)
		}
		params.Input = &in
		params.InputChannels = min(cfg.InputChannels, in.MaxInputChannels)
	}

	return params, nil
}

// Open allocates the stream buffers and opens the backend stream. An
// engine that was never configured uses DefaultStreamConfig. Devices are
// resolved before anything else changes, so a resolve failure such as
// ErrNoDevice leaves the engine, and any open stream, as it was. Otherwise
// an open stream is closed first. Backend failures return ErrDeviceOpen and
// leave the engine Configured.
func (e *Engine) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.requested
	if !e.configured {
		cfg = DefaultStreamConfig()
	}
	params, err := e.resolve(cfg)
	if err != nil {
		return err
	}

	if e.state == StateOpened || e.state == StateRunning {
		if err := e.closeLocked(); err != nil {
			GetLogger().Warn("error closing previous stream", logger.Error(err))
		}
	}

	e.requested = cfg
	e.configured = true
	e.resolved = params
	e.state = StateConfigured

	st := e.newStreamState(params)

	start := time.Now()
	stream, err := e.backend.OpenStream(params, e.process)
	if err != nil {
		return errors.New(fmt.Errorf("%w: %w", ErrDeviceOpen, err)).
			Component(ComponentAudioCore).
			Category(errors.CategoryAudioDevice).
			Context("backend", e.backend.Name()).
			Context("output_device", params.Output.Name).
			Timing("open_stream", time.Since(start)).
			Build()
	}

	st.locked = lockMemory(float32Bytes(st.ring.data), st.commands.data)
	e.stream = stream
	e.rt.Store(st)
	e.state = StateOpened
	e.startWatch(st)

	info := e.infoLocked()
	e.last = info
	if e.opts.Observer != nil {
		e.opts.Observer.StreamOpened(info)
	}

	fields := []logger.Field{
		logger.String("session_id", st.id),
		logger.String("backend", e.backend.Name()),
		logger.String("output", params.Output.Name),
		logger.Int("output_channels", params.OutputChannels),
		logger.Float64("sample_rate", params.SampleRate),
		logger.Int("block_size", params.BlockSize),
		logger.Int("blocks", st.ring.Blocks()),
	}
	if params.Input != nil {
		fields = append(fields,
			logger.String("input", params.Input.Name),
			logger.Int("input_channels", params.InputChannels))
	}
	GetLogger().Info("audio stream opened", fields...)

	return nil
}

func (e *Engine) newStreamState(params StreamParams) *streamState {
	st := &streamState{
		id:       uuid.New().String(),
		params:   params,
		ring:     NewRingBuffer(params.SampleRate, params.BlockSize, params.OutputChannels),
		commands: NewCommandChannel(e.opts.CommandBufferSize),
		clock:    newStreamClock(params.SampleRate, params.BlockSize),
		voices:   NewVoiceTable(e.opts.MaxVoices),
		slots:    NewCodeSlots(e.opts.CodeSlots),
		monitor:  &Monitor{},
		budget:   time.Duration(float64(params.BlockSize) / params.SampleRate * float64(time.Second)),
		openedAt: time.Now(),
	}
	if params.Input != nil && params.InputChannels > 0 && e.opts.InputTapSeconds > 0 {
		st.tap = NewInputTap(e.opts.InputTapSeconds, params.SampleRate, params.InputChannels)
	}
	st.apply = func(cmd Command) { e.applyCommand(st, cmd) }
	return st
}

func (e *Engine) startWatch(st *streamState) {
	if e.opts.MonitorInterval < 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.stopWatch = cancel
	e.watchWG.Add(1)
	go func() {
		defer e.watchWG.Done()
		st.watch(ctx, e.opts.MonitorInterval)
	}()
}

// Start begins callbacks. It is a no-op while running and fails with
// ErrInvalidState unless the stream is open.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateRunning:
		return nil
	case StateOpened:
	default:
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, e.state)
	}

	if err := e.stream.Start(); err != nil {
		return errors.New(fmt.Errorf("%w: %w", ErrDeviceOpen, err)).
			Component(ComponentAudioCore).
			Category(errors.CategoryAudioDevice).
			Context("backend", e.backend.Name()).
			Context("operation", "start_stream").
			Build()
	}
	e.state = StateRunning
	GetLogger().Debug("audio stream started")
	return nil
}

// Stop halts callbacks and keeps the buffers. It is a no-op unless running.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return nil
	}
	if err := e.stream.Stop(); err != nil {
		return errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryAudioDevice).
			Context("backend", e.backend.Name()).
			Context("operation", "stop_stream").
			Build()
	}
	e.state = StateOpened
	GetLogger().Debug("audio stream stopped")
	return nil
}

// Close stops the stream and releases its buffers. The configuration is
// kept for the next Open. Close on an engine without a stream is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateOpened && e.state != StateRunning {
		return nil
	}
	return e.closeLocked()
}

func (e *Engine) closeLocked() error {
	st := e.rt.Load()

	// the backend guarantees no callback is in flight once Close returns
	err := e.stream.Close()
	e.stream = nil
	e.rt.Store(nil)

	if e.stopWatch != nil {
		e.stopWatch()
		e.watchWG.Wait()
		e.stopWatch = nil
	}

	e.state = StateClosed

	if st != nil {
		unlockMemory(st.locked)
		stats := st.stats()
		info := e.infoFor(st)
		info.State = StateClosed.String()
		e.last = info
		if e.opts.Observer != nil {
			e.opts.Observer.StreamClosed(info, stats)
		}
		GetLogger().Info("audio stream closed",
			logger.String("session_id", st.id),
			logger.Uint64("callbacks", stats.Callbacks),
			logger.Uint64("underruns", stats.Underruns),
			logger.Float64("stream_time", st.clock.Seconds()))
	}

	if err != nil {
		return errors.New(err).
			Component(ComponentAudioCore).
			Category(errors.CategoryAudioDevice).
			Context("backend", e.backend.Name()).
			Context("operation", "close_stream").
			Build()
	}
	return nil
}

// Info describes the open stream, or the last one when closed
func (e *Engine) Info() StreamInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.infoLocked()
}

func (e *Engine) infoLocked() StreamInfo {
	if st := e.rt.Load(); st != nil {
		return e.infoFor(st)
	}
	info := e.last
	info.Backend = e.backend.Name()
	info.State = e.state.String()
	if info.SessionID == "" {
		info.SampleRate = e.requested.SampleRate
		info.BlockSize = e.requested.BlockSize
	}
	return info
}

func (e *Engine) infoFor(st *streamState) StreamInfo {
	out := st.params.Output
	return StreamInfo{
		SessionID:      st.id,
		Backend:        e.backend.Name(),
		State:          e.state.String(),
		SampleRate:     st.params.SampleRate,
		BlockSize:      st.params.BlockSize,
		Blocks:         st.ring.Blocks(),
		Lag:            st.ring.Lag(),
		StreamTime:     st.clock.Seconds(),
		Output:         &out,
		OutputChannels: st.params.OutputChannels,
		Input:          st.params.Input,
		InputChannels:  st.params.InputChannels,
		OpenedAt:       st.openedAt,
	}
}

// Stats returns counters for the open stream, zero when closed
func (e *Engine) Stats() Stats {
	if st := e.rt.Load(); st != nil {
		return st.stats()
	}
	return Stats{}
}

// StreamTime returns seconds of audio delivered since Open
func (e *Engine) StreamTime() float64 {
	if st := e.rt.Load(); st != nil {
		return st.clock.Seconds()
	}
	return 0
}

// Lag returns the duration of the ring buffer in seconds, 0 when closed
func (e *Engine) Lag() float64 {
	if st := e.rt.Load(); st != nil {
		return st.ring.Lag()
	}
	return 0
}

// BlockRead returns the consumer's ring slot, 0 when closed
func (e *Engine) BlockRead() int {
	if st := e.rt.Load(); st != nil {
		return st.ring.BlockRead()
	}
	return 0
}

// Ring returns the open stream's ring buffer for the producer, nil when
// closed. The ring must not be used after the stream is closed.
func (e *Engine) Ring() *RingBuffer {
	if st := e.rt.Load(); st != nil {
		return st.ring
	}
	return nil
}

// Tap returns the open stream's input tap, nil when disabled or closed
func (e *Engine) Tap() *InputTap {
	if st := e.rt.Load(); st != nil {
		return st.tap
	}
	return nil
}

// Push sends one command to the real-time side
func (e *Engine) Push(cmd Command) error {
	st := e.rt.Load()
	if st == nil {
		return fmt.Errorf("%w: no open stream", ErrInvalidState)
	}
	return st.commands.PushCommand(cmd)
}

// AddVoice stages p and schedules it as voice id. An existing voice with
// the same id is replaced.
func (e *Engine) AddVoice(id int32, p Processor) error {
	return e.stageAndPush(OpVoiceAdd, id, p)
}

// SwapVoice replaces the processor of live voice id
func (e *Engine) SwapVoice(id int32, p Processor) error {
	return e.stageAndPush(OpVoiceCode, id, p)
}

func (e *Engine) stageAndPush(op Opcode, id int32, p Processor) error {
	st := e.rt.Load()
	if st == nil {
		return fmt.Errorf("%w: no open stream", ErrInvalidState)
	}
	hint := int(uint32(id) % uint32(st.slots.Len()))
	slot, err := st.slots.StageAny(hint, p)
	if err != nil {
		return err
	}
	if err := st.commands.Push(op, id, int32(slot), 0); err != nil {
		st.slots.Take(slot)
		return err
	}
	return nil
}

// RemoveVoice schedules removal of voice id
func (e *Engine) RemoveVoice(id int32) error {
	return e.Push(Command{Op: OpVoiceRemove, ID: id})
}

// SetVoiceParam schedules parameter pid of voice id to be set to value
func (e *Engine) SetVoiceParam(id, pid int32, value float64) error {
	return e.Push(Command{Op: OpVoiceParam, ID: id, PID: pid, Value: value})
}

// ClearVoices schedules removal of every voice
func (e *Engine) ClearVoices() error {
	return e.Push(Command{Op: OpClear})
}
