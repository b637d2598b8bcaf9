package domain

// Debug adapter and VM service protocol names used by the coordinator.
const (
	// DefaultAdapterPrefix prefixes the custom events of the Dart debug adapter.
	DefaultAdapterPrefix = "dart"
	// DefaultDebugType is the session type reported by the Dart debug adapter.
	DefaultDebugType = "dart"

	// DebuggerUrisEvent is sent once the VM service of a session is reachable.
	DebuggerUrisEvent = "debuggerUris"
	// ServiceExtensionAddedEvent is sent for every service extension an
	// isolate registers.
	ServiceExtensionAddedEvent = "serviceExtensionAdded"

	// MethodAddTargetApp tells a viewer about a target it can attach to.
	MethodAddTargetApp = "ext.explo.addTargetApp"
	// MethodRemoveTargetApp tells a viewer a target went away. Its
	// registration also marks the registering isolate as a viewer.
	MethodRemoveTargetApp = "ext.explo.removeTargetApp"

	// CallServiceCommand is the custom debug adapter request that forwards a
	// VM service call to the debuggee.
	CallServiceCommand = "callService"
)

// EventName joins an adapter prefix and an event name.
func EventName(prefix, event string) string {
	if prefix == "" {
		return event
	}
	return prefix + "." + event
}

// DebuggerUrisBody is the body of the debuggerUris event
type DebuggerUrisBody struct {
	VMServiceURI *string `json:"vmServiceUri"`
}

// ServiceExtensionAddedBody is the body of the serviceExtensionAdded event
type ServiceExtensionAddedBody struct {
	ExtensionRPC *string `json:"extensionRPC"`
	IsolateID    *string `json:"isolateId"`
}
