package models

// Envelope is the uniform response body. Success implies Data and no Error;
// failure implies Error and no Data.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Count      *int        `json:"count,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

func OK(data any) Envelope {
	if data == nil {
		data = struct{}{}
	}
	return Envelope{Success: true, Data: data}
}

// List wraps a list result; items must be non-nil so data is always present.
func List[T any](items []T, page *Pagination) Envelope {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return Envelope{Success: true, Data: items, Count: &n, Pagination: page}
}

func Fail(msg string) Envelope {
	if msg == "" {
		msg = "request failed"
	}
	return Envelope{Success: false, Error: msg}
}
