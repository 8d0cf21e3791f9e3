package progress

import (
	"github.com/rs/zerolog"
)

// LogObserver writes run events as structured log lines. Sweep and split
// boundaries log at info, individual combinations at debug, failures at warn.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver logs through logger.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (l *LogObserver) SweepStarted(e SweepStart) {
	l.logger.Info().
		Str("run_id", e.RunID).
		Int("combinations", e.Combinations).
		Int("workers", e.Workers).
		Msg("sweep: started")
}

func (l *LogObserver) CombinationDone(e Combination) {
	if e.Err != nil {
		l.logger.Warn().Err(e.Err).
			Str("run_id", e.RunID).
			Int("index", e.Index).
			Str("params", e.Params).
			Msg("sweep: combination failed")
		return
	}
	l.logger.Debug().
		Str("run_id", e.RunID).
		Int("index", e.Index).
		Int("total", e.Total).
		Str("params", e.Params).
		Int("trades", e.Trades).
		Float64("return_pct", e.Metric).
		Dur("elapsed", e.Duration).
		Msg("sweep: combination done")
}

func (l *LogObserver) SweepFinished(e SweepEnd) {
	ev := l.logger.Info()
	if e.Err != nil {
		ev = l.logger.Warn().Err(e.Err)
	}
	ev.Str("run_id", e.RunID).
		Int("total", e.Total).
		Int("completed", e.Completed).
		Int("failed", e.Failed).
		Dur("elapsed", e.Duration).
		Msg("sweep: finished")
}

func (l *LogObserver) WalkForwardStarted(e WalkForwardStart) {
	l.logger.Info().
		Str("run_id", e.RunID).
		Int("splits", e.Splits).
		Str("metric", e.Metric).
		Msg("walkforward: started")
}

func (l *LogObserver) SplitStarted(e SplitStart) {
	l.logger.Debug().
		Str("run_id", e.RunID).
		Int("split", e.Index).
		Int("train_bars", e.TrainBars).
		Int("test_bars", e.TestBars).
		Msg("walkforward: split started")
}

func (l *LogObserver) SplitDone(e Split) {
	if e.Err != nil {
		l.logger.Error().Err(e.Err).
			Str("run_id", e.RunID).
			Int("split", e.Index).
			Msg("walkforward: split failed")
		return
	}
	l.logger.Info().
		Str("run_id", e.RunID).
		Int("split", e.Index).
		Int("total", e.Total).
		Int("train_bars", e.TrainBars).
		Int("test_bars", e.TestBars).
		Str("params", e.Params).
		Float64("in_sample", e.InSample).
		Float64("out_sample", e.OutSample).
		Dur("elapsed", e.Duration).
		Msg("walkforward: split done")
}

func (l *LogObserver) WalkForwardFinished(e WalkForwardEnd) {
	ev := l.logger.Info()
	if e.Err != nil {
		ev = l.logger.Error().Err(e.Err)
	}
	ev.Str("run_id", e.RunID).
		Int("splits", e.Splits).
		Int("completed", e.Completed).
		Dur("elapsed", e.Duration).
		Msg("walkforward: finished")
}
