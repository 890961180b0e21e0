package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// World routing.
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"

	// Command layer.
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrUnknownCommand = "E_UNKNOWN_COMMAND"
	ErrNoPermission   = "E_NO_PERMISSION"
	ErrInternal       = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrWorldNotFound:   {},
	ErrBadRequest:      {},
	ErrUnknownCommand:  {},
	ErrNoPermission:    {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
