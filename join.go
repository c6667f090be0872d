package symex

import (
	"golang.org/x/tools/container/intsets"
)

// JoinPoint returns the first instruction where both edges of the forward
// goto at pc meet again, following forward edges only. Returns false if pc
// is not a forward goto or the edges never meet within the function.
func (f *Function) JoinPoint(pc int) (int, bool) {
	instr, ok := f.Body[pc].(*GotoInstr)
	if !ok || instr.Target <= pc {
		return 0, false
	}

	var taken, fallthru, common intsets.Sparse
	f.forwardReach(instr.Target, &taken)
	if instr.Cond == nil || IsConstantTrue(instr.Cond) {
		return instr.Target, true
	}
	f.forwardReach(pc+1, &fallthru)

	common.Intersection(&taken, &fallthru)
	if common.IsEmpty() {
		return 0, false
	}
	return common.Min(), true
}

// JoinPoints returns the join point of every forward goto, keyed by the
// goto's index.
func (f *Function) JoinPoints() map[int]int {
	m := make(map[int]int)
	for pc := range f.Body {
		if jp, ok := f.JoinPoint(pc); ok {
			m[pc] = jp
		}
	}
	return m
}

// forwardReach adds to set every instruction reachable from start without
// taking a backward edge.
func (f *Function) forwardReach(start int, set *intsets.Sparse) {
	if start >= len(f.Body) {
		return
	}

	stack := []int{start}
	set.Insert(start)
	for len(stack) > 0 {
		pc := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, succ := range f.Successors(pc) {
			if succ > pc && set.Insert(succ) {
				stack = append(stack, succ)
			}
		}
	}
}
