// SPDX-License-Identifier: MPL-2.0

package schedule

import (
	"github.com/charmbracelet/log"

	"matrun-cli/internal/matrix"
	"matrun-cli/internal/report"
)

type (
	// LogObserver narrates state transitions through a structured logger.
	LogObserver struct {
		Logger *log.Logger
	}

	// multiObserver fans events out to several observers in order.
	multiObserver []Observer
)

// Observers combines observers into one. Nil entries are dropped.
func Observers(obs ...Observer) Observer {
	var list multiObserver
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	if len(list) == 1 {
		return list[0]
	}
	return list
}

// CellStateChanged implements Observer.
func (m multiObserver) CellStateChanged(spec matrix.Spec, from, to report.Status) {
	for _, o := range m {
		o.CellStateChanged(spec, from, to)
	}
}

// RunStateChanged implements Observer.
func (m multiObserver) RunStateChanged(from, to RunState) {
	for _, o := range m {
		o.RunStateChanged(from, to)
	}
}

// CellStateChanged implements Observer.
func (l *LogObserver) CellStateChanged(spec matrix.Spec, _, to report.Status) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	switch to {
	case report.StatusPassed:
		logger.Info("cell passed", "cell", spec.ID())
	case report.StatusFailed:
		logger.Error("cell failed", "cell", spec.ID())
	case report.StatusErrored:
		logger.Error("cell errored", "cell", spec.ID())
	case report.StatusSkipped:
		logger.Warn("cell skipped", "cell", spec.ID())
	default:
		logger.Debug("cell state", "cell", spec.ID(), "state", to.String())
	}
}

// RunStateChanged implements Observer.
func (l *LogObserver) RunStateChanged(_, to RunState) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Debug("run state", "state", to.String())
}
