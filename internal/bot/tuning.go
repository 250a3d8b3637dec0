package bot

const finishBonus = 1000.0

// Tuning weighs the terms of the hard bot's move score:
//
//	score = points*PointWeight + completion + finish - options*OpponentOptionWeight
type Tuning struct {
	PointWeight float64
	// CompleteBonus rewards leaving the sequence as runnable code.
	CompleteBonus float64
	// OpponentOptionWeight penalises each legal reply left to the opponent.
	OpponentOptionWeight float64
	// FinishBonus applies when the play reaches the win score.
	FinishBonus float64
}

// DefaultTuning favours points, then starving the opponent of replies.
var DefaultTuning = Tuning{
	PointWeight:          1.0,
	CompleteBonus:        1.5,
	OpponentOptionWeight: 0.05,
	FinishBonus:          finishBonus,
}
