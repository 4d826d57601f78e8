package websocket

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError Event = "error"
	EventCard  Event = "card"
)

// CardResponse carries a freshly rendered summary card.
type CardResponse struct {
	Event        Event  `json:"event"`
	ClassID      int    `json:"class_id"`
	StudentCount int    `json:"student_count"`
	HTML         string `json:"html"`
}

// ErrorResponse reports a stream failure before the connection closes.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}
