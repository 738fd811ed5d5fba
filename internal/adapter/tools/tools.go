// Package tools implements the built-in wellness agent capabilities. Each
// tool simulates its side effect deterministically so runs are reproducible
// in development and evaluation.
package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vitalis-ai/vitalis/internal/port/tool"
)

// Parameterized is implemented by tools that publish a JSON Schema for
// their input, used when declaring the tool to the model.
type Parameterized interface {
	Parameters() json.RawMessage
}

// RegisterAll registers every built-in tool on the registry.
func RegisterAll(reg *tool.Registry, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	reg.Register(&SendMessage{log: log})
	reg.Register(&GetHealthMetrics{log: log})
	reg.Register(&OptimizeCalendar{log: log})
	reg.Register(&SearchWellnessProducts{log: log})
	reg.Register(&WebSearch{log: log})
	reg.Register(&CommerceBuy{log: log})
	reg.Register(&ExecuteShortcut{log: log})
}

// decodeInput unmarshals a tool input payload, wrapping failures in
// tool.ErrExecution so the run records them as failed actions.
func decodeInput(input json.RawMessage, dst any) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, dst); err != nil {
		return fmt.Errorf("%w: decode input: %v", tool.ErrExecution, err)
	}
	return nil
}

// encodeOutput marshals a tool result payload.
func encodeOutput(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode output: %v", tool.ErrExecution, err)
	}
	return data, nil
}
