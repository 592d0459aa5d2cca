package motion

// PosDelta tells whether a vector change moved the position.
type PosDelta int

const (
	PosNoop PosDelta = iota
	PosChange
)

// MoveDelta tells how a vector change affected movement.
type MoveDelta int

const (
	MoveNoop MoveDelta = iota
	MoveNoopMoving
	MoveStart
	MoveChange
	MoveStop
)

// Transition classifies the replacement of one vector by another at the
// new vector's timestamp.
type Transition struct {
	Pos  PosDelta
	Move MoveDelta
}

// NewTransition compares old and next. A nil old vector is an initial
// transition: the position counts as changed.
func NewTransition(old *Vector, next Vector) Transition {
	moving := next.Moving()
	if old == nil {
		if moving {
			return Transition{Pos: PosChange, Move: MoveStart}
		}
		return Transition{Pos: PosChange, Move: MoveNoop}
	}
	ts := next.Timestamp
	end := old.At(ts)
	start := next.At(ts)

	tr := Transition{Pos: PosNoop}
	if end.Position != start.Position {
		tr.Pos = PosChange
	}
	wasMoving := old.Moving()
	switch {
	case wasMoving && moving:
		if end.Velocity != start.Velocity || end.Acceleration != start.Acceleration {
			tr.Move = MoveChange
		} else {
			tr.Move = MoveNoopMoving
		}
	case !wasMoving && moving:
		tr.Move = MoveStart
	case wasMoving && !moving:
		tr.Move = MoveStop
	default:
		tr.Move = MoveNoop
	}
	return tr
}

// Discontinuous reports whether the active set has to be recomputed: the
// position jumped, or the motion stopped.
func (t Transition) Discontinuous() bool {
	return t.Pos == PosChange || t.Move == MoveStop
}

func (t Transition) String() string {
	s := ""
	if t.Pos == PosChange {
		s = "jump, "
	}
	switch t.Move {
	case MoveStart:
		return s + "movement started"
	case MoveChange:
		return s + "movement changed"
	case MoveStop:
		return s + "movement stopped"
	case MoveNoopMoving:
		return s + "movement noop - moving"
	default:
		return s + "movement noop - not moving"
	}
}
