package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/flowcanvas/flowcanvas/pkg/ddl"
	"github.com/flowcanvas/flowcanvas/pkg/llm"
	"github.com/flowcanvas/flowcanvas/pkg/merge"
	"github.com/flowcanvas/flowcanvas/pkg/scene"
)

// Tool names the model may invoke. synthesize_diagram is locally resolvable;
// inspect_canvas requires data only the caller's scene-graph host possesses.
const (
	ToolSynthesizeDiagram = "synthesize_diagram"
	ToolInspectCanvas     = "inspect_canvas"
)

// toolDefinitions describes the fixed tool set exposed on every turn.
func toolDefinitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolSynthesizeDiagram,
			Description: "Generate or update the diagram on the user's canvas from diagram description language.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ddl": map[string]any{
						"type":        "string",
						"description": "Flowchart text, e.g. \"flowchart LR\\nA[Start] --> B[End]\"",
					},
					"mergeMode": map[string]any{
						"type": "string",
						"enum": []string{"replace", "extend"},
						"description": "replace discards previously generated elements; extend adds to the scene",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "One-sentence summary of the diagram for the user",
					},
				},
				"required": []string{"ddl"},
			},
		},
		{
			Name:        ToolInspectCanvas,
			Description: "Look at the user's current canvas contents before deciding what to draw.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// synthesizeArgs is the wire shape of synthesize_diagram arguments.
type synthesizeArgs struct {
	DDL         string `json:"ddl"`
	MergeMode   string `json:"mergeMode"`
	Description string `json:"description"`
}

// executeSynthesize parses the invocation arguments and runs the DDL
// synthesizer. A JSON failure is an argument error (the invocation is
// isolated and the turn proceeds); a DDL failure is a conversion error
// reported inside the result.
func executeSynthesize(inv Invocation) (*DiagramResult, error) {
	var args synthesizeArgs
	if err := json.Unmarshal([]byte(inv.Args), &args); err != nil {
		return nil, fmt.Errorf("malformed tool arguments: %w", err)
	}

	mode, err := merge.ParseMode(args.MergeMode)
	if err != nil {
		return nil, err
	}

	result := &DiagramResult{
		InvocationID: inv.ID,
		Spec: DiagramSpec{
			DDLText:     args.DDL,
			MergeMode:   mode,
			Description: args.Description,
		},
	}

	elements, err := ddl.Synthesize(args.DDL)
	if err != nil {
		result.Err = err.Error()
		return result, nil
	}

	result.Elements = elements
	return result, nil
}

// diagramToolOutput renders the synthetic tool result text appended to the
// transcript after a local synthesize_diagram execution.
func diagramToolOutput(result *DiagramResult) (string, bool) {
	if result.Err != "" {
		return "Diagram synthesis failed: " + result.Err, true
	}

	nodes, edges := 0, 0
	for _, el := range result.Elements {
		if el.Kind == scene.KindEdge {
			edges++
		} else {
			nodes++
		}
	}
	return fmt.Sprintf("Diagram synthesized successfully: %d nodes, %d connections (%s mode). The canvas has been updated.",
		nodes, edges, result.Spec.MergeMode), false
}
