package evaluator

import (
	"encoding/json"
	"math"
)

// ActionsToJSON marshals an action list to a JSON array. Each element is an
// object with a "kind" field plus the action's payload. Integral numbers
// are written without a decimal point.
func ActionsToJSON(actions []Action) ([]byte, error) {
	raw := make([]map[string]any, len(actions))
	for i, a := range actions {
		raw[i] = actionToRaw(a)
	}
	return json.Marshal(raw)
}

func actionToRaw(a Action) map[string]any {
	out := map[string]any{"kind": a.Kind()}
	switch act := a.(type) {
	case ActionSetSpeed:
		out["speed"] = numberToRaw(act.Speed)
	case ActionSetDirection:
		out["direction"] = act.Direction.String()
	case ActionPlaySample:
		out["index"] = act.Index
	case ActionSpawnBall:
		out["x"] = numberToRaw(act.X)
		out["y"] = numberToRaw(act.Y)
		out["speed"] = numberToRaw(act.Speed)
		out["direction"] = act.Direction.String()
	case ActionPrint:
		out["text"] = act.Text
	case ActionExecuteProgram:
		if act.Program != nil {
			out["program"] = act.Program.Name
		}
	}
	return out
}

func numberToRaw(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
