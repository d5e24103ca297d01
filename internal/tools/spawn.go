package tools

import (
	"context"
	"fmt"
)

// Spawner starts a background subagent run. Implemented by the agent
// package; declared here to keep tools free of an agent import.
type Spawner interface {
	Spawn(ctx context.Context, task, label string) (string, error)
}

// SpawnTool lets the LLM delegate a task to a background subagent.
type SpawnTool struct {
	spawner Spawner
}

// NewSpawnTool creates the tool.
func NewSpawnTool(spawner Spawner) *SpawnTool {
	return &SpawnTool{spawner: spawner}
}

func (t *SpawnTool) Name() string { return "spawn" }
func (t *SpawnTool) Description() string {
	return "Spawn a background subagent to work on a task; results are announced back to this chat"
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to perform",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Optional short label for tracking the run",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)

	id, err := t.spawner.Spawn(ctx, task, label)
	if err != nil {
		return ErrorResult(fmt.Sprintf("spawn failed: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("subagent %s started; it will report back when done", id))
}
