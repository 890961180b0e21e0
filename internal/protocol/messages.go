package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	// UUID is optional; an offline id is derived from Name when empty.
	UUID     string `json:"uuid,omitempty"`
	World    string `json:"world,omitempty"`
	Pos      [3]int `json:"pos,omitempty"`
	MaxQueue int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	UUID            string   `json:"uuid"`
	World           string   `json:"world"`
	Permissions     []string `json:"permissions,omitempty"`
}

// COMMAND (client -> server): one chat command line, for example "police on".
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Line            string `json:"line"`
}

// ATTACK_BLOCK (client -> server)
type AttackBlockMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	World           string `json:"world,omitempty"`
	Pos             [3]int `json:"pos"`
	Face            string `json:"face,omitempty"`
}

// USE_BLOCK (client -> server). Item is the held block state, empty for an
// empty hand.
type UseBlockMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	World           string `json:"world,omitempty"`
	Pos             [3]int `json:"pos"`
	Face            string `json:"face"`
	Hand            string `json:"hand,omitempty"`
	Item            string `json:"item,omitempty"`
}

// MESSAGE (server -> client): one line of user-facing output.
type MessageMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Level           string `json:"level"`
	Text            string `json:"text"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	For             string `json:"for,omitempty"`
}

const (
	HandMain = "main"
	HandOff  = "off"
)
