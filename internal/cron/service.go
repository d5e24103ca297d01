// Package cron runs scheduled reminders. Due jobs are injected into the
// inbound bus as system messages addressed to the job's chat, so the
// agent loop handles them like any other system event.
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/hiveclaw/internal/bus"
)

const tickInterval = 20 * time.Second

// Job is one scheduled task. Schedule is a standard cron expression; At
// (epoch millis) marks a one-shot job instead.
type Job struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Schedule string `json:"schedule,omitempty"`
	At       int64  `json:"at,omitempty"`
	Message  string `json:"message"`
	Channel  string `json:"channel"`
	ChatID   string `json:"chat_id"`

	CreatedAt int64 `json:"created_at"`
	LastRun   int64 `json:"last_run,omitempty"`
}

// Service owns the job file and the tick loop.
type Service struct {
	path   string
	msgBus *bus.MessageBus
	parser *gronx.Gronx

	mu   sync.Mutex
	jobs []Job
}

// NewService loads jobs from path (created on first save).
func NewService(path string, msgBus *bus.MessageBus) *Service {
	s := &Service{path: path, msgBus: msgBus, parser: gronx.New()}
	if err := s.load(); err != nil {
		slog.Warn("cron jobs load failed, starting empty", "path", path, "error", err)
	}
	return s
}

// Add validates and persists a new job.
func (s *Service) Add(job Job) (Job, error) {
	if job.Message == "" {
		return Job{}, fmt.Errorf("cron: message is required")
	}
	if job.Channel == "" || job.ChatID == "" {
		return Job{}, fmt.Errorf("cron: target chat is required")
	}
	if job.Schedule == "" && job.At <= 0 {
		return Job{}, fmt.Errorf("cron: either schedule or at is required")
	}
	if job.Schedule != "" && !s.parser.IsValid(job.Schedule) {
		return Job{}, fmt.Errorf("cron: invalid schedule %q", job.Schedule)
	}

	job.ID = uuid.NewString()[:8]
	job.CreatedAt = time.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	if err := s.save(); err != nil {
		s.jobs = s.jobs[:len(s.jobs)-1]
		return Job{}, err
	}
	return job, nil
}

// Remove deletes a job by id.
func (s *Service) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return true, s.save()
		}
	}
	return false, nil
}

// List returns all jobs sorted by creation time.
func (s *Service) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// Run ticks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.fireDue(now)
		}
	}
}

// fireDue publishes every due job as a system inbound message. Cron jobs
// fire at most once per minute; one-shot jobs are removed after firing.
func (s *Service) fireDue(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	kept := s.jobs[:0]
	for _, job := range s.jobs {
		due, oneShot := s.isDue(job, now)
		if due {
			s.publish(job)
			job.LastRun = now.UnixMilli()
			changed = true
			if oneShot {
				continue
			}
		}
		kept = append(kept, job)
	}
	s.jobs = kept

	if changed {
		if err := s.save(); err != nil {
			slog.Warn("cron jobs save failed", "error", err)
		}
	}
}

func (s *Service) isDue(job Job, now time.Time) (due, oneShot bool) {
	if job.At > 0 {
		return now.UnixMilli() >= job.At, true
	}
	// Already fired this minute.
	if job.LastRun > 0 &&
		time.UnixMilli(job.LastRun).Truncate(time.Minute).Equal(now.Truncate(time.Minute)) {
		return false, false
	}
	ok, err := s.parser.IsDue(job.Schedule, now)
	if err != nil {
		slog.Warn("cron schedule check failed", "job", job.ID, "error", err)
		return false, false
	}
	return ok, false
}

func (s *Service) publish(job Job) {
	sender := job.Name
	if sender == "" {
		sender = "cron"
	}
	s.msgBus.PublishInbound(bus.InboundMessage{
		Channel:  "system",
		SenderID: "cron:" + job.ID,
		ChatID:   job.Channel + ":" + job.ChatID,
		Content:  job.Message,
		Metadata: map[string]string{
			bus.MetaSenderAgentName: sender,
		},
	})
	slog.Info("cron job fired", "job", job.ID, "chat", job.ChatID)
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var jobs []Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return err
	}
	s.jobs = jobs
	return nil
}

// save writes the job file atomically; caller holds the lock.
func (s *Service) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
