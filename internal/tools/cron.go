package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/hiveclaw/internal/cron"
)

// CronTool lets the LLM manage scheduled reminders for the current chat.
type CronTool struct {
	service *cron.Service

	mu      sync.Mutex
	channel string
	chatID  string
}

// NewCronTool creates the tool.
func NewCronTool(service *cron.Service) *CronTool {
	return &CronTool{service: service}
}

// SetContext points the tool at the conversation being processed. New
// jobs deliver to this chat.
func (t *CronTool) SetContext(channel, chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.channel = channel
	t.chatID = chatID
}

func (t *CronTool) Name() string { return "cron" }
func (t *CronTool) Description() string {
	return "Manage scheduled reminders: add a recurring or one-shot job, list jobs, or remove one"
}

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"add", "list", "remove"},
				"description": "What to do",
			},
			"message": map[string]interface{}{
				"type":        "string",
				"description": "Reminder text (for add)",
			},
			"schedule": map[string]interface{}{
				"type":        "string",
				"description": "Cron expression like '0 9 * * 1-5' (for recurring add)",
			},
			"in_minutes": map[string]interface{}{
				"type":        "number",
				"description": "Fire once after this many minutes (for one-shot add)",
			},
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Optional job name (for add)",
			},
			"id": map[string]interface{}{
				"type":        "string",
				"description": "Job id (for remove)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	action, _ := args["action"].(string)
	switch action {
	case "add":
		return t.add(args)
	case "list":
		return t.list()
	case "remove":
		id, _ := args["id"].(string)
		if id == "" {
			return ErrorResult("id is required for remove")
		}
		removed, err := t.service.Remove(id)
		if err != nil {
			return ErrorResult(fmt.Sprintf("remove failed: %v", err)).WithError(err)
		}
		if !removed {
			return ErrorResult(fmt.Sprintf("no job with id %s", id))
		}
		return NewResult(fmt.Sprintf("job %s removed", id))
	default:
		return ErrorResult(fmt.Sprintf("unknown action: %s", action))
	}
}

func (t *CronTool) add(args map[string]interface{}) *Result {
	t.mu.Lock()
	channel, chatID := t.channel, t.chatID
	t.mu.Unlock()
	if channel == "" || chatID == "" {
		return ErrorResult("no active conversation to schedule for")
	}

	message, _ := args["message"].(string)
	schedule, _ := args["schedule"].(string)
	name, _ := args["name"].(string)

	job := cron.Job{
		Name:     name,
		Schedule: schedule,
		Message:  message,
		Channel:  channel,
		ChatID:   chatID,
	}
	if mins, ok := args["in_minutes"].(float64); ok && mins > 0 {
		job.At = time.Now().Add(time.Duration(mins) * time.Minute).UnixMilli()
		job.Schedule = ""
	}

	added, err := t.service.Add(job)
	if err != nil {
		return ErrorResult(fmt.Sprintf("add failed: %v", err)).WithError(err)
	}
	if added.Schedule != "" {
		return NewResult(fmt.Sprintf("job %s scheduled: %s", added.ID, added.Schedule))
	}
	return NewResult(fmt.Sprintf("job %s scheduled once at %s",
		added.ID, time.UnixMilli(added.At).Format(time.RFC3339)))
}

func (t *CronTool) list() *Result {
	jobs := t.service.List()
	if len(jobs) == 0 {
		return NewResult("no scheduled jobs")
	}
	var b strings.Builder
	for _, j := range jobs {
		when := j.Schedule
		if j.At > 0 {
			when = "once at " + time.UnixMilli(j.At).Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "- %s [%s] %s → %s:%s\n", j.ID, when, j.Message, j.Channel, j.ChatID)
	}
	return NewResult(b.String())
}
