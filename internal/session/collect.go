package session

import (
	"strings"

	"github.com/tinytelemetry/chartstream/internal/extract"
	"github.com/tinytelemetry/chartstream/internal/model"
)

// Result is the outcome of an instant replay.
type Result struct {
	Text    string
	Spec    model.Spec
	State   model.PlaybackState
	Message string
	Tokens  int
}

// Collect replays events without delays and returns what a full timed replay
// would have produced: the concatenated tokens up to the first terminal
// event, and the chart extracted from them. A sequence without a terminal
// event ends Done.
func Collect(events []model.StreamEvent) Result {
	var (
		buf strings.Builder
		res = Result{State: model.StateDone}
	)
loop:
	for _, ev := range events {
		switch ev.Kind {
		case model.EventToken:
			buf.WriteString(ev.Delta)
			res.Tokens++
		case model.EventDone:
			break loop
		case model.EventError:
			res.State = model.StateError
			res.Message = ev.Message
			break loop
		}
	}
	if len(events) == 0 {
		res.State = model.StateError
		res.Message = "no events to play"
	}
	res.Text = buf.String()
	res.Spec = extract.Chart(res.Text)
	return res
}
