package plugin

// State is the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUnloaded - no Lua state exists.
	StateUnloaded State = iota

	// StateLoaded - the main chunk ran; setup and activate have not.
	StateLoaded

	// StateActivating - setup or activate is running.
	StateActivating

	// StateActive - the plugin is running.
	StateActive

	// StateDeactivating - deactivate is running.
	StateDeactivating

	// StateError - loading or activation failed.
	StateError
)

var stateNames = [...]string{
	StateUnloaded:     "unloaded",
	StateLoaded:       "loaded",
	StateActivating:   "activating",
	StateActive:       "active",
	StateDeactivating: "deactivating",
	StateError:        "error",
}

// String returns the state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// IsUsable reports whether the plugin has a live Lua state.
func (s State) IsUsable() bool {
	return s == StateLoaded || s == StateActive
}
