package app

import "github.com/dkeye/Huddle/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a recipient whose send buffer was full.
type Policy interface {
	OnBackPressure(meeting domain.MeetingID, conn domain.ConnID) BackpressureAction
}

// SimplePolicy disconnects slow consumers.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.MeetingID, domain.ConnID) BackpressureAction {
	return KickMember
}

// TolerantPolicy only loses the frame.
type TolerantPolicy struct{}

func (TolerantPolicy) OnBackPressure(domain.MeetingID, domain.ConnID) BackpressureAction {
	return DropFrame
}

// PolicyByName maps config values to a Policy; unknown names get SimplePolicy.
func PolicyByName(name string) Policy {
	if name == "drop" {
		return TolerantPolicy{}
	}
	return SimplePolicy{}
}
