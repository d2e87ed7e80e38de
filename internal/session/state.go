package session

import "fmt"

type Kind int

const (
	Idle Kind = iota
	Waiting
	Paired
)

func (k Kind) String() string {
	switch k {
	case Waiting:
		return "waiting"
	case Paired:
		return "paired"
	default:
		return "idle"
	}
}

// State is the session state of one participant. Partner is only
// meaningful when Kind is Paired.
type State struct {
	Kind    Kind
	Partner int64
}

func (s State) IsPaired() bool {
	return s.Kind == Paired
}

func (s State) String() string {
	if s.Kind == Paired {
		return fmt.Sprintf("paired(%d)", s.Partner)
	}
	return s.Kind.String()
}

type Pair struct {
	A int64
	B int64
}

// Members returns each side of the pair together with the other side.
func (p Pair) Members() [2][2]int64 {
	return [2][2]int64{{p.A, p.B}, {p.B, p.A}}
}

// Snapshot is a consistent copy of the registry taken under one lock.
type Snapshot struct {
	Queue []int64
	Pairs map[int64]int64
}
