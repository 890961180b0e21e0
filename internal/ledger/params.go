package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"

	"ledgerpolice.dipix.pw/internal/geom"
)

// ParamError reports a malformed search parameter.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("search param %q: %s", e.Param, e.Reason)
}

// ParseParams reads the space separated key:value search grammar used by
// `police search`, for example "range:8 action:block-break !source:@fire after:2d".
// range is resolved around origin and may not exceed maxRange.
func ParseParams(input string, origin cube.Pos, now time.Time, maxRange int) (Query, error) {
	var q Query
	for _, tok := range strings.Fields(input) {
		key, value, ok := strings.Cut(tok, ":")
		if !ok || value == "" {
			return Query{}, &ParamError{Param: tok, Reason: "expected key:value"}
		}
		negate := strings.HasPrefix(value, "!")
		if strings.HasPrefix(key, "!") {
			negate = true
			key = key[1:]
		}
		value = strings.TrimPrefix(value, "!")
		value = strings.ToLower(value)

		switch strings.ToLower(key) {
		case "action", "a":
			q.Actions = append(q.Actions, negatable(value, negate))
		case "object", "o":
			if !strings.Contains(value, ":") {
				value = "minecraft:" + value
			}
			q.Objects = append(q.Objects, negatable(value, negate))
		case "source", "s":
			q.Sources = append(q.Sources, negatable(strings.TrimPrefix(value, "@"), negate))
		case "world", "w":
			if !strings.Contains(value, ":") {
				value = "minecraft:" + value
			}
			q.Worlds = append(q.Worlds, negatable(value, negate))
		case "range", "r":
			if negate {
				return Query{}, &ParamError{Param: tok, Reason: "range cannot be negated"}
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return Query{}, &ParamError{Param: tok, Reason: "range must be a positive integer"}
			}
			if maxRange > 0 && n > maxRange {
				return Query{}, &ParamError{Param: tok, Reason: fmt.Sprintf("range exceeds maximum of %d", maxRange)}
			}
			r := geom.Single(origin).Grow(n)
			q.Bounds = &r
		case "before", "b", "after", "af":
			if negate {
				return Query{}, &ParamError{Param: tok, Reason: "time bounds cannot be negated"}
			}
			d, err := ParseDuration(value)
			if err != nil {
				return Query{}, &ParamError{Param: tok, Reason: err.Error()}
			}
			at := now.Add(-d)
			if k := strings.ToLower(key); k == "before" || k == "b" {
				q.Before = at
			} else {
				q.After = at
			}
		default:
			return Query{}, &ParamError{Param: tok, Reason: "unknown key"}
		}
	}
	return q, nil
}

func negatable(v string, negate bool) Negatable[string] {
	if negate {
		return Deny(v)
	}
	return Allow(v)
}

var durationUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseDuration reads compact durations such as "1w2d3h4m5s". Every number
// needs a unit.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	var total time.Duration
	n := 0
	digits := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			digits++
			if digits > 9 {
				return 0, fmt.Errorf("duration %q: number too large", s)
			}
			continue
		}
		unit, ok := durationUnits[c]
		if !ok {
			return 0, fmt.Errorf("duration %q: unknown unit %q", s, string(c))
		}
		if digits == 0 {
			return 0, fmt.Errorf("duration %q: unit without number", s)
		}
		if int64(n) > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("duration %q: out of range", s)
		}
		d := time.Duration(n) * unit
		if total > time.Duration(math.MaxInt64)-d {
			return 0, fmt.Errorf("duration %q: out of range", s)
		}
		total += d
		n, digits = 0, 0
	}
	if digits > 0 {
		return 0, fmt.Errorf("duration %q: missing unit", s)
	}
	return total, nil
}
