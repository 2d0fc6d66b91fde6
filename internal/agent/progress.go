package agent

import (
	"encoding/json"

	"dcaadvisor/internal/tools"
)

// fingerprint identifies a call by tool name and canonical arguments.
// encoding/json sorts map keys, which makes the encoding canonical.
func fingerprint(call tools.Call) string {
	args, err := json.Marshal(call.Arguments)
	if err != nil {
		return call.Name + "\x00" + call.ID
	}
	if call.Arguments == nil {
		args = []byte("{}")
	}
	return call.Name + "\x00" + string(args)
}

// progressGuard remembers the calls of the previous cycle
type progressGuard struct {
	previous map[string]struct{}
}

// repeated returns the first call that was already requested in the previous cycle
func (g *progressGuard) repeated(calls []tools.Call) (tools.Call, bool) {
	for _, call := range calls {
		if _, seen := g.previous[fingerprint(call)]; seen {
			return call, true
		}
	}
	return tools.Call{}, false
}

func (g *progressGuard) remember(calls []tools.Call) {
	g.previous = make(map[string]struct{}, len(calls))
	for _, call := range calls {
		g.previous[fingerprint(call)] = struct{}{}
	}
}
