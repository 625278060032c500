package domain

// Stage — этап pipeline, на котором находится запись.
//
//	FETCHED → FLATTENED → VALIDATED → CLEANED → AGGREGATED
//	                    ↘ REJECTED
//
// REJECTED и AGGREGATED — финальные этапы. Возвратов и циклов нет.
type Stage string

const (
	StageNone       Stage = ""
	StageFetched    Stage = "FETCHED"
	StageFlattened  Stage = "FLATTENED"
	StageValidated  Stage = "VALIDATED"
	StageRejected   Stage = "REJECTED"
	StageCleaned    Stage = "CLEANED"
	StageAggregated Stage = "AGGREGATED"
)

var stageTransitions = map[Stage][]Stage{
	StageNone:      {StageFetched},
	StageFetched:   {StageFlattened},
	StageFlattened: {StageValidated, StageRejected},
	StageValidated: {StageCleaned},
	StageCleaned:   {StageAggregated},
}

// CanTransition проверяет, допустим ли переход s → to.
func (s Stage) CanTransition(to Stage) bool {
	for _, next := range stageTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для REJECTED и AGGREGATED.
func (s Stage) IsTerminal() bool {
	return s == StageRejected || s == StageAggregated
}

func (s Stage) String() string {
	return string(s)
}
