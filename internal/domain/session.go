package domain

// DebuggerType mirrors the Dart-Code debugger type enum carried in the launch
// configuration of every "dart" debug session.
type DebuggerType int

const (
	DebuggerTypeDart DebuggerType = iota
	DebuggerTypeDartTest
	DebuggerTypeFlutter
	DebuggerTypeFlutterTest
	DebuggerTypeWeb
	DebuggerTypeWebTest
)

// String returns the enum name as used by Dart-Code
func (t DebuggerType) String() string {
	switch t {
	case DebuggerTypeDart:
		return "Dart"
	case DebuggerTypeDartTest:
		return "DartTest"
	case DebuggerTypeFlutter:
		return "Flutter"
	case DebuggerTypeFlutterTest:
		return "FlutterTest"
	case DebuggerTypeWeb:
		return "Web"
	case DebuggerTypeWebTest:
		return "WebTest"
	default:
		return "Unknown"
	}
}

// LaunchConfiguration is the subset of a debug launch configuration the
// coordinator reads.
type LaunchConfiguration struct {
	DebuggerType DebuggerType `json:"debuggerType"`
	Program      string       `json:"program"`
}

// DebugSession is the host's handle for one debug session.
//
// Sessions are compared by pointer: the host allocates a new handle for every
// session start, so two handles with the same ID are still different sessions.
type DebugSession struct {
	ID            string
	Type          string
	Name          string
	Configuration LaunchConfiguration
}

// CustomEvent is a named debug adapter protocol event sent by a session.
type CustomEvent struct {
	Session *DebugSession
	Event   string
	Body    []byte
}

// TargetApp describes a session that viewers can attach to.
type TargetApp struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	VMServiceURI string `json:"vmServiceUri"`
}
