package transport

import "encoding/json"

// Envelope wraps every API response. Code is set on errors and on successful
// but degraded answers (feedback served from cache, buffered writes pending).
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// PageMeta describes a slice of the caller's task list.
type PageMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewDegraded returns a success envelope flagged with code.
func NewDegraded(code string, data interface{}) Envelope {
	return Envelope{
		Status: "success",
		Code:   code,
		Data:   data,
	}
}

// NewError returns an error envelope with optional metadata.
func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// WithData attaches a payload to an error envelope, e.g. the last good feedback.
func (e Envelope) WithData(data interface{}) Envelope {
	e.Data = data
	return e
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
