package datastore

import (
	"time"

	"github.com/avhost/av/internal/audiocore"
)

// Session is one opened audio stream. Rows are inserted when the stream
// opens and completed when it closes.
type Session struct {
	ID             string  `gorm:"primaryKey;size:36" json:"id"`
	Backend        string  `gorm:"size:32" json:"backend"`
	OutputDevice   string  `json:"outputDevice"`
	OutputChannels int     `json:"outputChannels"`
	InputDevice    string  `json:"inputDevice,omitempty"`
	InputChannels  int     `json:"inputChannels,omitempty"`
	SampleRate     float64 `json:"sampleRate"`
	BlockSize      int     `json:"blockSize"`
	Blocks         int     `json:"blocks"`

	OpenedAt time.Time  `gorm:"index:idx_sessions_opened_at" json:"openedAt"`
	ClosedAt *time.Time `json:"closedAt,omitempty"`

	StreamTime float64 `json:"streamTime"`
	Callbacks  uint64  `json:"callbacks"`
	Underruns  uint64  `json:"underruns"`
	Commands   uint64  `json:"commands"`
	Panics     uint64  `json:"panics"`
	LastPanic  string  `json:"lastPanic,omitempty"`
}

// TableName pins the table name independent of gorm's naming strategy.
func (Session) TableName() string { return "sessions" }

// Open reports whether the session has not been closed yet.
func (s *Session) Open() bool { return s.ClosedAt == nil }

// Duration is the wall clock time the session was open, or has been so far.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.ClosedAt != nil {
		return s.ClosedAt.Sub(s.OpenedAt)
	}
	return now.Sub(s.OpenedAt)
}

// sessionFromInfo builds the row inserted when a stream opens.
func sessionFromInfo(info audiocore.StreamInfo) Session {
	s := Session{
		ID:             info.SessionID,
		Backend:        info.Backend,
		OutputChannels: info.OutputChannels,
		InputChannels:  info.InputChannels,
		SampleRate:     info.SampleRate,
		BlockSize:      info.BlockSize,
		Blocks:         info.Blocks,
		OpenedAt:       info.OpenedAt,
	}
	if info.Output != nil {
		s.OutputDevice = info.Output.Name
	}
	if info.Input != nil {
		s.InputDevice = info.Input.Name
	}
	if s.OpenedAt.IsZero() {
		s.OpenedAt = time.Now()
	}
	return s
}
