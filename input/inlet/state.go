package inlet

// State is the lifecycle state of an inlet
type State int32

// Lifecycle states, in the order the core status gauge reports them
const (
	StateUnconfigured State = iota
	StateConfigured
	StateAcquiring
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateAcquiring:
		return "acquiring"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// canStart reports whether Start may move s to Acquiring
func (s State) canStart() bool {
	return s == StateConfigured || s == StateStopped
}
