package models

// Entity is a resource row keyed by JSON field name. Values are string,
// bool, int64, time.Time or nil.
type Entity map[string]any

func (e Entity) ID() string {
	s, _ := e["id"].(string)
	return s
}

// Clone returns a shallow copy; values are immutable scalars.
func (e Entity) Clone() Entity {
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
