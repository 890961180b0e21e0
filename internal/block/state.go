package block

import (
	"fmt"
	"sort"
	"strings"

	"github.com/df-mc/dragonfly/server/block/cube"

	"ledgerpolice.dipix.pw/internal/geom"
)

const (
	AirID          = "minecraft:air"
	ChestID        = "minecraft:chest"
	TrappedChestID = "minecraft:trapped_chest"
)

// ChestType is the pairing half stored on a chest cell.
type ChestType uint8

const (
	ChestSingle ChestType = iota
	ChestLeft
	ChestRight
)

func (c ChestType) String() string {
	switch c {
	case ChestLeft:
		return "left"
	case ChestRight:
		return "right"
	default:
		return "single"
	}
}

func ParseChestType(s string) (ChestType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return ChestSingle, nil
	case "left":
		return ChestLeft, nil
	case "right":
		return ChestRight, nil
	}
	return ChestSingle, fmt.Errorf("unknown chest type %q", s)
}

// State is a read-only snapshot of one block cell. Facing and Chest are only
// meaningful for blocks that carry those properties; other properties are kept
// verbatim in Props.
type State struct {
	ID     string
	Facing cube.Direction
	Chest  ChestType
	Props  map[string]string
}

var Air = State{ID: AirID}

func (s State) IsAir() bool { return s.ID == "" || s.ID == AirID }

// IsPairable reports whether two adjacent cells of this block can form one
// double-wide container.
func (s State) IsPairable() bool {
	return s.ID == ChestID || s.ID == TrappedChestID
}

// Parse reads the bracketed block-state notation, for example
// "minecraft:chest[facing=north,type=right]". A missing namespace defaults to
// "minecraft".
func Parse(raw string) (State, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return State{}, fmt.Errorf("empty block state")
	}
	id := raw
	var props string
	if i := strings.IndexByte(raw, '['); i >= 0 {
		if !strings.HasSuffix(raw, "]") {
			return State{}, fmt.Errorf("block state %q: unterminated properties", raw)
		}
		id = raw[:i]
		props = raw[i+1 : len(raw)-1]
	}
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return State{}, fmt.Errorf("block state %q: empty id", raw)
	}
	if !strings.Contains(id, ":") {
		id = "minecraft:" + id
	}

	s := State{ID: id}
	if props == "" {
		return s, nil
	}
	for _, kv := range strings.Split(props, ",") {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if !ok || k == "" {
			return State{}, fmt.Errorf("block state %q: bad property %q", raw, kv)
		}
		switch k {
		case "facing":
			if !s.IsPairable() {
				// Hoppers, pistons and barrels may also face up or down.
				if s.Props == nil {
					s.Props = map[string]string{}
				}
				s.Props[k] = strings.ToLower(v)
				continue
			}
			d, err := geom.ParseDirection(v)
			if err != nil {
				return State{}, fmt.Errorf("block state %q: %w", raw, err)
			}
			s.Facing = d
		case "type":
			if s.IsPairable() {
				c, err := ParseChestType(v)
				if err != nil {
					return State{}, fmt.Errorf("block state %q: %w", raw, err)
				}
				s.Chest = c
				continue
			}
			fallthrough
		default:
			if s.Props == nil {
				s.Props = map[string]string{}
			}
			s.Props[k] = v
		}
	}
	return s, nil
}

func MustParse(raw string) State {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

func (s State) String() string {
	if s.IsAir() {
		return AirID
	}
	var props []string
	if s.IsPairable() {
		props = append(props, "facing="+geom.DirectionName(s.Facing), "type="+s.Chest.String())
	}
	keys := make([]string, 0, len(s.Props))
	for k := range s.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		props = append(props, k+"="+s.Props[k])
	}
	if len(props) == 0 {
		return s.ID
	}
	sort.Strings(props)
	return s.ID + "[" + strings.Join(props, ",") + "]"
}
