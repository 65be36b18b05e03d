package sequence

import (
	"fmt"
	"time"

	"github.com/jwalitptl/labreport/internal/model"
)

// NextIdentifier derives the identifier for today from the prior state and
// returns the state that has to be persisted before the identifier is used.
//
// The counter restarts at 1 when there is no prior state or the prior date
// is not today; otherwise it is the prior counter plus one. It has no upper
// bound: past 999 the numeric part simply gets wider.
func NextIdentifier(today time.Time, prior *model.SequencerState) (string, model.SequencerState) {
	date := today.Format(model.DateLayout)

	series := 1
	if prior != nil && prior.Date == date {
		series = prior.Series + 1
	}

	next := model.SequencerState{Date: date, Series: series}
	return FormatIdentifier(today, series), next
}

// FormatIdentifier renders DDMMYY/NNN.
func FormatIdentifier(day time.Time, series int) string {
	return fmt.Sprintf("%s/%03d", day.Format("020106"), series)
}
