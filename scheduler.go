package symex

import (
	"go.uber.org/zap"
)

// threadedStep executes one instruction of the active thread. Threads run
// to completion in creation order: when the active thread finishes, the
// next one takes over.
func (e *Executor) threadedStep(state *State) error {
	if err := e.step(state); err != nil {
		return err
	}
	e.totalVCCs, e.remainingVCCs = state.TotalVCCs, state.RemainingVCCs

	if !e.Paused() && state.Done() && state.Source.ThreadNr+1 < len(state.Threads) {
		e.switchToThread(state, state.Source.ThreadNr+1)
	}
	return nil
}

// switchToThread saves the position of the active thread and resumes
// thread nr.
func (e *Executor) switchToThread(state *State, nr int) {
	invariant(nr >= 0 && nr < len(state.Threads), "thread %d does not exist", nr)

	cur := state.Thread()
	cur.Source = state.Source
	cur.Guard = state.Guard
	cur.AtomicSectionID = state.AtomicSectionID

	next := state.Threads[nr]
	e.Logger.Debug("[thread] switch", zap.Int("from", state.Source.ThreadNr), zap.Int("to", nr), zap.Stringer("source", next.Source))

	state.Source = next.Source
	state.Guard = next.Guard
	state.AtomicSectionID = next.AtomicSectionID
}
