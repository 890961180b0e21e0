package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	codes := []string{
		ErrProtoBadRequest,
		ErrProtoVersion,
		ErrWorldNotFound,
		ErrBadRequest,
		ErrUnknownCommand,
		ErrNoPermission,
		ErrInternal,
	}
	seen := map[string]bool{}
	for _, c := range codes {
		if !IsKnownCode(c) {
			t.Errorf("code %q not known", c)
		}
		if seen[c] {
			t.Errorf("code %q defined twice", c)
		}
		seen[c] = true
	}
	// An absent code means success.
	if !IsKnownCode("") {
		t.Fatalf("empty code must be accepted")
	}
	for _, c := range []string{"E_NOT_DEFINED", "e_internal", "E_WORLD_BUSY"} {
		if IsKnownCode(c) {
			t.Fatalf("code %q should be unknown", c)
		}
	}
}
