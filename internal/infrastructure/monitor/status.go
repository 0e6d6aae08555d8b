package monitor

import "time"

type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

// Healthy means every dependency answered.
func (s Status) Healthy() bool {
	return s.PostgreSQL && s.Redis && s.Buffer
}

// Serving means task writes still land somewhere: the store or the buffer.
func (s Status) Serving() bool {
	return s.PostgreSQL || s.Buffer
}

// Backlog reports buffered writes still waiting for replay.
func (s Status) Backlog() bool {
	return s.BufferSize > 0
}
