package hostinterface

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/rpa-review/sessioncore/internal/dispatcher"
)

// Built-in event names answered without a handler.
const (
	EventVersion   = ":VERSION:"
	EventTimestamp = ":TIMESTAMP:"
)

// Surface is the single entry point the host calls for every event.
type Surface struct {
	version    string
	dispatcher *dispatcher.Dispatcher
	now        func() time.Time
}

// NewSurface returns a surface routing to d.
func NewSurface(version string, d *dispatcher.Dispatcher) *Surface {
	return &Surface{version: version, dispatcher: d, now: time.Now}
}

// HandleEvent dispatches a host event and formats the reply.
func (s *Surface) HandleEvent(name string, args []string, payload any) string {
	switch name {
	case EventVersion:
		return formatResponse(name, s.version, nil)
	case EventTimestamp:
		return formatResponse(name, strconv.FormatInt(s.now().UTC().UnixNano(), 10), nil)
	}
	if s.dispatcher == nil || !s.dispatcher.HasHandler(name) {
		return formatError(name, "no handler registered")
	}
	result, err := s.dispatcher.Dispatch(dispatcher.Event{
		Name:      name,
		Args:      args,
		Payload:   payload,
		Timestamp: s.now(),
	})
	return formatResponse(name, result, err)
}

// formatResponse renders ["ok","<event>"], ["ok","<event>",<result>] or
// ["error","<event>","<message>"].
func formatResponse(name string, result any, err error) string {
	if err != nil {
		return formatError(name, err.Error())
	}
	reply := []any{"ok", name}
	if result != nil {
		reply = append(reply, result)
	}
	b, merr := json.Marshal(reply)
	if merr != nil {
		return formatError(name, merr.Error())
	}
	return string(b)
}

func formatError(name, msg string) string {
	b, _ := json.Marshal([]string{"error", name, msg})
	return string(b)
}
