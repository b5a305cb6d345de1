package app

import "github.com/dkeye/roomrelay/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a session whose send buffer is full.
type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
}

// SimplePolicy applies the same action to every slow session.
type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(core.RoomService, core.MemberSession) BackpressureAction {
	return p.Action
}

// PolicyFromConfig maps the "backpressure" config value to a Policy.
func PolicyFromConfig(name string) Policy {
	if name == "drop" {
		return SimplePolicy{Action: DropFrame}
	}
	return SimplePolicy{Action: KickMember}
}
