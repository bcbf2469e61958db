package export

import (
	"fmt"
	"math"

	"github.com/pelletier/go-toml/v2"
)

// TOML renders v as a TOML document. The top level must be an object and
// nothing may be null; Naturals above the signed 64-bit range are rejected.
func TOML(v Value) ([]byte, error) {
	obj, ok := v.(Object)
	if !ok {
		return nil, fail(nil, "TOML documents must be records, got %s", kindOf(v))
	}
	if err := checkTOML(obj, nil); err != nil {
		return nil, err
	}
	out, err := toml.Marshal(Plain(obj))
	if err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return out, nil
}

func checkTOML(v Value, path []string) error {
	switch x := v.(type) {
	case Null:
		return fail(path, "TOML has no null")
	case Natural:
		if uint64(x) > math.MaxInt64 {
			return fail(path, "%d does not fit a TOML integer", uint64(x))
		}
	case Array:
		for i, el := range x {
			if err := checkTOML(el, appendPath(path, fmt.Sprintf("[%d]", i))); err != nil {
				return err
			}
		}
	case Object:
		for _, m := range x {
			if err := checkTOML(m.Value, appendPath(path, m.Key)); err != nil {
				return err
			}
		}
	}
	return nil
}

func kindOf(v Value) string {
	switch v.(type) {
	case Null:
		return "null"
	case Bool:
		return "a boolean"
	case Natural, Integer, Double:
		return "a number"
	case Text:
		return "text"
	case Array:
		return "a list"
	}
	return "a record"
}
