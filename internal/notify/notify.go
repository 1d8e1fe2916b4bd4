package notify

// Event is a progress notification emitted on state transitions of interest.
// Observers are for UI and chat surfaces only and never affect control flow.
type Event struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id,omitempty"`
	PlanID    string `json:"plan_id,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Observer receives progress events. A nil Observer is valid and means
// nobody is listening.
type Observer func(Event)

// Emit invokes the observer if one is registered.
func (o Observer) Emit(ev Event) {
	if o != nil {
		o(ev)
	}
}
