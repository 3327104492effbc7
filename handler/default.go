package handler

// Default accepts anything and stores the deposit body as a single
// datastream. Register it last.
type Default struct {
	Steps
}

// NewDefault returns the catch-all handler.
func NewDefault() Handler {
	return &Default{}
}

func (h *Default) Accepts(contentType, packaging string) bool {
	return true
}
