package sequencer

import "github.com/webtiming/timingsrc/internal/interval"

// Action is the effect of an endpoint crossing on a cue's active state.
type Action int

const (
	Stay Action = iota
	Enter
	Exit
	// EnterExit happens when a singular mover passes a singular cue.
	EnterExit
)

func (a Action) String() string {
	switch a {
	case Enter:
		return "enter"
	case Exit:
		return "exit"
	case EnterExit:
		return "enter-exit"
	default:
		return "stay"
	}
}

// Role is the position of the mover that crossed an endpoint relative to
// the other mover. In point mode the role is always RoleSingular.
type Role int

const (
	RoleLeft Role = iota
	RoleRight
	RoleSingular
)

func (r Role) String() string {
	switch r {
	case RoleLeft:
		return "L"
	case RoleRight:
		return "R"
	default:
		return "S"
	}
}

// EndpointType classifies a crossed cue endpoint.
type EndpointType int

const (
	EndpointLeft EndpointType = iota
	EndpointRight
	EndpointSingular
)

// TypeOf returns the endpoint type of side.
func TypeOf(side interval.Side) EndpointType {
	switch {
	case side == interval.Singular:
		return EndpointSingular
	case side.Right():
		return EndpointRight
	default:
		return EndpointLeft
	}
}

// activeMap is indexed by role, direction (0 right, 1 left) and endpoint
// type.
var activeMap = [3][2][3]Action{
	RoleLeft: {
		{Stay, Exit, Exit},
		{Stay, Enter, Enter},
	},
	RoleRight: {
		{Enter, Stay, Enter},
		{Exit, Stay, Exit},
	},
	RoleSingular: {
		{Enter, Exit, EnterExit},
		{Exit, Enter, EnterExit},
	},
}

// ActiveMap returns the action for a mover with the given role crossing an
// endpoint of type ep while moving in direction (> 0 right, otherwise left).
func ActiveMap(role Role, direction int, ep EndpointType) Action {
	d := 0
	if direction <= 0 {
		d = 1
	}
	return activeMap[role][d][ep]
}
