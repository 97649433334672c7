package notifier

import (
	"log/slog"

	"github.com/loykin/jobsched/internal/execution"
)

// Log is a Notifier that writes each event through slog as a structured
// key/value record.
type Log struct {
	logger *slog.Logger
}

// NewLog builds a Log notifier. A nil logger falls back to slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) String() string { return "log" }

func (l *Log) DefinitionAdded(def DefinitionInfo) {
	l.logger.Info("definition added", "id", def.ID, "name", def.Name)
}

func (l *Log) DefinitionRemoved(def DefinitionInfo) {
	l.logger.Info("definition removed", "id", def.ID, "name", def.Name)
}

func (l *Log) SchedulerStarted() { l.logger.Info("scheduler started") }

func (l *Log) SchedulerStopped() { l.logger.Info("scheduler stopped") }

func (l *Log) JobStarted(ex *execution.Execution) {
	l.logger.Info("job started",
		"execution_id", ex.ID(),
		"definition_id", ex.DefinitionID(),
		"definition_name", ex.DefinitionName(),
		"start_time", ex.StartTime())
}

func (l *Log) JobCompleted(ex *execution.Execution) {
	dur, _ := ex.Duration()
	if ex.Success() {
		l.logger.Info("job completed",
			"execution_id", ex.ID(),
			"definition_id", ex.DefinitionID(),
			"duration", dur)
		return
	}
	l.logger.Error("job failed",
		"execution_id", ex.ID(),
		"definition_id", ex.DefinitionID(),
		"duration", dur,
		"error", ex.Err())
}
