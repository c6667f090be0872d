package symex

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Path is a suspended path: the equation built so far and the state to
// resume from.
type Path struct {
	Equation *Equation
	State    *State
}

// NewPath returns a path holding independent copies of eq and state. The
// copied state sends its steps to the copied equation.
func NewPath(eq *Equation, state *State) *Path {
	other := &Path{Equation: eq.Clone(), State: state.Clone()}
	other.State.Target = other.Equation
	return other
}

// Done returns true if the path ran to completion.
func (p *Path) Done() bool {
	for _, t := range p.State.Threads {
		if len(t.CallStack) > 0 {
			return false
		}
	}
	return true
}

// PathStorage represents a strategy for choosing the next path to resume.
type PathStorage interface {
	// Returns the next path to resume, or nil if none remain.
	Pop() *Path

	// Adds a path to the storage.
	Push(p *Path)

	// Returns the number of stored paths.
	Len() int
}

// NewPathStorage returns the storage for the named strategy.
func NewPathStorage(strategy string, seed int64) (PathStorage, error) {
	switch strategy {
	case PathsLifo, "":
		return NewLifoPathStorage(), nil
	case PathsFifo:
		return NewFifoPathStorage(), nil
	case PathsRandom:
		return NewRandomPathStorage(rand.New(rand.NewSource(seed))), nil
	default:
		return nil, errors.Errorf("unknown path strategy: %q", strategy)
	}
}

// LifoPathStorage resumes the most recently saved path first, exploring
// depth-first.
type LifoPathStorage struct {
	paths []*Path
}

// NewLifoPathStorage returns a new instance of LifoPathStorage.
func NewLifoPathStorage() *LifoPathStorage {
	return &LifoPathStorage{}
}

// Pop returns the most recently pushed path.
func (s *LifoPathStorage) Pop() *Path {
	if len(s.paths) == 0 {
		return nil
	}
	p := s.paths[len(s.paths)-1]
	s.paths[len(s.paths)-1] = nil
	s.paths = s.paths[:len(s.paths)-1]
	return p
}

// Push adds a path to the storage.
func (s *LifoPathStorage) Push(p *Path) {
	s.paths = append(s.paths, p)
}

// Len returns the number of stored paths.
func (s *LifoPathStorage) Len() int { return len(s.paths) }

// FifoPathStorage resumes the oldest saved path first, exploring
// breadth-first.
type FifoPathStorage struct {
	paths []*Path
}

// NewFifoPathStorage returns a new instance of FifoPathStorage.
func NewFifoPathStorage() *FifoPathStorage {
	return &FifoPathStorage{}
}

// Pop returns the least recently pushed path.
func (s *FifoPathStorage) Pop() *Path {
	if len(s.paths) == 0 {
		return nil
	}
	p := s.paths[0]
	s.paths[0] = nil
	s.paths = s.paths[1:]
	return p
}

// Push adds a path to the storage.
func (s *FifoPathStorage) Push(p *Path) {
	s.paths = append(s.paths, p)
}

// Len returns the number of stored paths.
func (s *FifoPathStorage) Len() int { return len(s.paths) }

// RandomPathStorage resumes a randomly chosen path.
type RandomPathStorage struct {
	paths []*Path
	rand  *rand.Rand
}

// NewRandomPathStorage returns a new instance of RandomPathStorage.
func NewRandomPathStorage(rand *rand.Rand) *RandomPathStorage {
	return &RandomPathStorage{
		rand: rand,
	}
}

// Pop returns a random path.
func (s *RandomPathStorage) Pop() *Path {
	if len(s.paths) == 0 {
		return nil
	}
	i := s.rand.Intn(len(s.paths))
	p := s.paths[i]
	s.paths = append(s.paths[:i], s.paths[i+1:]...)
	return p
}

// Push adds a path to the storage.
func (s *RandomPathStorage) Push(p *Path) {
	s.paths = append(s.paths, p)
}

// Len returns the number of stored paths.
func (s *RandomPathStorage) Len() int { return len(s.paths) }
