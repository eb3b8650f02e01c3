package domain

// Event is one progress report from a pipeline run. The concrete type is one of
// InProgress, Failed or Succeeded.
type Event interface {
	Message() string
	Percent() int
	isEvent()
}

// InProgress reports an in-flight stage.
type InProgress struct {
	Status   string
	Progress int
}

// Failed is a terminal event for a run that produced no output. Err carries the
// classified cause for logging and metrics; it is never sent to clients.
type Failed struct {
	Status   string
	Progress int
	Err      error
}

// Succeeded is a terminal event carrying a reference to the generated overlay.
type Succeeded struct {
	Status    string
	Progress  int
	ResultRef string
}

func (e InProgress) Message() string { return e.Status }
func (e InProgress) Percent() int    { return e.Progress }
func (InProgress) isEvent()          {}

func (e Failed) Message() string { return e.Status }
func (e Failed) Percent() int    { return e.Progress }
func (Failed) isEvent()          {}

func (e Succeeded) Message() string { return e.Status }
func (e Succeeded) Percent() int    { return e.Progress }
func (Succeeded) isEvent()          {}

// IsTerminal reports whether e ends a run.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case Failed, Succeeded:
		return true
	default:
		return false
	}
}

// Progress returns an in-flight event.
func Progress(status string, pct int) Event {
	return InProgress{Status: status, Progress: pct}
}

// Fail returns a terminal failure whose status is the error's message.
func Fail(err error) Event {
	return Failed{Status: err.Error(), Progress: 100, Err: err}
}

// Succeed returns a terminal success referencing an output artifact.
func Succeed(status, ref string) Event {
	return Succeeded{Status: status, Progress: 100, ResultRef: ref}
}
