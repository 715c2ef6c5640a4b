package audit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode selects how much of an entity goes into a snapshot.
type Mode string

const (
	// ModeFull stores every serialized field.
	ModeFull Mode = "full"
	// ModeMinimal stores only the fields listed in minimalFields for the
	// entity and action; entities without a listing are stored in full.
	ModeMinimal Mode = "minimal"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeFull:
		return ModeFull, nil
	case ModeMinimal:
		return ModeMinimal, nil
	default:
		return "", fmt.Errorf("unknown audit snapshot mode %q", s)
	}
}

var minimalFields = map[string]map[Action][]string{
	"patient": {
		ActionInsert: {"name", "phone", "age", "gender"},
		ActionUpdate: {"name", "phone"},
		ActionDelete: {"name", "phone"},
	},
}

// Policy turns domain values into the JSON stored in old_data/new_data.
type Policy struct {
	Mode Mode
}

// Snapshot serializes v for the given entity and action. A nil value, or a
// typed nil pointer, yields nil.
func (p Policy) Snapshot(action Action, entityType string, v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s snapshot: %w", entityType, err)
	}
	if string(raw) == "null" {
		return nil, nil
	}
	if p.Mode != ModeMinimal {
		return raw, nil
	}
	keep, ok := minimalFields[entityType][action]
	if !ok {
		return raw, nil
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("%s snapshot is not an object: %w", entityType, err)
	}
	out := make(map[string]json.RawMessage, len(keep))
	for _, k := range keep {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// checkShape enforces which snapshots each action carries.
func checkShape(action Action, before, after []byte) error {
	switch action {
	case ActionInsert:
		if before != nil || after == nil {
			return fmt.Errorf("INSERT needs an after snapshot only")
		}
	case ActionUpdate:
		if before == nil || after == nil {
			return fmt.Errorf("UPDATE needs before and after snapshots")
		}
	case ActionDelete:
		if before == nil || after != nil {
			return fmt.Errorf("DELETE needs a before snapshot only")
		}
	default:
		return fmt.Errorf("unknown audit action %q", action)
	}
	return nil
}
