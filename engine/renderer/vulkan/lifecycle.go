package vulkan

import "fmt"

// Lifecycle is the state of an owned GPU object group.
type Lifecycle int

const (
	Live Lifecycle = iota
	Destroyed
)

func (l Lifecycle) String() string {
	if l == Destroyed {
		return "destroyed"
	}
	return "live"
}

// lifecycle is embedded by every component that owns GPU handles.
type lifecycle struct {
	state Lifecycle
}

func (l *lifecycle) Alive() bool {
	return l.state == Live
}

// markDestroyed flips the state and reports whether the caller should release
// the handles. A second call is a programming error: debug builds panic,
// release builds ignore it.
func (l *lifecycle) markDestroyed(what string) bool {
	if l.state == Destroyed {
		if debugAssertions {
			panic(fmt.Sprintf("%s destroyed twice", what))
		}
		return false
	}
	l.state = Destroyed
	return true
}

// assertLive guards accessors of a destroyed component in debug builds.
func (l *lifecycle) assertLive(what string) {
	if debugAssertions && l.state == Destroyed {
		panic(fmt.Sprintf("%s used after destroy", what))
	}
}

func (l *lifecycle) revive() {
	l.state = Live
}
