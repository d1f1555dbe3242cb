// Package scheduler drives one-shot, interval, and cron-expression jobs
// against a persistent job list, stored as one JSON record per line and
// rewritten whole on every change.
package scheduler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nanogate/nanogate/internal/utils"
)

// Kind identifies which schedule flavor a job uses.
type Kind string

const (
	KindAt    Kind = "at"
	KindEvery Kind = "every"
	KindCron  Kind = "cron"
)

// Job is one scheduled unit of work: run prompt against agent's loop.
type Job struct {
	ID        string     `json:"id"`
	AgentID   string     `json:"agent_id"`
	Name      string     `json:"name"`
	Prompt    string     `json:"prompt"`
	Channel   string     `json:"channel,omitempty"`
	Peer      string     `json:"peer,omitempty"`
	Kind      Kind       `json:"kind"`
	Schedule  string     `json:"schedule"`
	CreatedAt time.Time  `json:"created_at"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	RunCount  int        `json:"run_count"`
	MaxRuns   int        `json:"max_runs,omitempty"` // 0 = unbounded
	Enabled   bool       `json:"enabled"`

	LastResult   string `json:"last_result,omitempty"`
	LastResultOK bool   `json:"last_result_ok"`
}

// Expired reports whether an at-job has already fired.
func (j Job) Expired() bool {
	return j.Kind == KindAt && j.RunCount > 0
}

var everyPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseEvery parses the "<number><unit>" interval grammar into a duration.
func ParseEvery(spec string) (time.Duration, error) {
	m := everyPattern.FindStringSubmatch(spec)
	if m == nil {
		return 0, fmt.Errorf("scheduler: invalid interval %q", spec)
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("scheduler: invalid interval unit in %q", spec)
}

// Scheduler holds the persistent job list.
type Scheduler struct {
	path string

	mu     sync.Mutex
	jobs   []Job
	nextID int
}

// New loads (or initializes) a scheduler persisted at path.
func New(path string) (*Scheduler, error) {
	if _, err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	s := &Scheduler{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) load() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var j Job
		if err := json.Unmarshal(line, &j); err != nil {
			continue // skip corrupt line
		}
		// Filter out expired at-jobs on load, per the reload-minus-expired contract.
		if !j.Expired() {
			s.jobs = append(s.jobs, j)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	for _, j := range s.jobs {
		var n int
		if _, err := fmt.Sscanf(j.ID, "job%d", &n); err == nil && n >= s.nextID {
			s.nextID = n + 1
		}
	}
	return nil
}

// writeLocked rewrites the job list as one JSON record per line. Caller must
// hold s.mu.
func (s *Scheduler) writeLocked() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, j := range s.jobs {
		if err := enc.Encode(j); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Scheduler) newID() string {
	id := fmt.Sprintf("job%d", s.nextID)
	s.nextID++
	return id
}

// CreateAt schedules a one-shot job for atUTC.
func (s *Scheduler) CreateAt(agent, name, prompt, channel, peer string, atUTC time.Time) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := atUTC.UTC()
	j := Job{
		ID: s.newID(), AgentID: agent, Name: name, Prompt: prompt,
		Channel: channel, Peer: peer,
		Kind: KindAt, Schedule: at.Format(time.RFC3339),
		CreatedAt: time.Now().UTC(), NextRun: &at, Enabled: true,
	}
	s.jobs = append(s.jobs, j)
	return j, s.writeLocked()
}

// CreateEvery schedules a recurring job every interval (spec's "<n><unit>" grammar).
func (s *Scheduler) CreateEvery(agent, name, prompt, channel, peer, interval string, maxRuns int) (Job, error) {
	if _, err := ParseEvery(interval); err != nil {
		return Job{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	d, _ := ParseEvery(interval)
	next := now.Add(d)
	j := Job{
		ID: s.newID(), AgentID: agent, Name: name, Prompt: prompt,
		Channel: channel, Peer: peer,
		Kind: KindEvery, Schedule: interval,
		CreatedAt: now, NextRun: &next, MaxRuns: maxRuns, Enabled: true,
	}
	s.jobs = append(s.jobs, j)
	return j, s.writeLocked()
}

// CreateCron schedules a recurring job per a standard 5-field cron expression.
func (s *Scheduler) CreateCron(agent, name, prompt, channel, peer, expr string, maxRuns int) (Job, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return Job{}, fmt.Errorf("scheduler: invalid cron expression %q: %w", expr, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	next := schedule.Next(now)
	j := Job{
		ID: s.newID(), AgentID: agent, Name: name, Prompt: prompt,
		Channel: channel, Peer: peer,
		Kind: KindCron, Schedule: expr,
		CreatedAt: now, NextRun: &next, MaxRuns: maxRuns, Enabled: true,
	}
	s.jobs = append(s.jobs, j)
	return j, s.writeLocked()
}

// Delete removes a job by id.
func (s *Scheduler) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return s.writeLocked()
		}
	}
	return fmt.Errorf("scheduler: job %q not found", id)
}

// SetEnabled toggles a job's enabled flag.
func (s *Scheduler) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs[i].Enabled = enabled
			return s.writeLocked()
		}
	}
	return fmt.Errorf("scheduler: job %q not found", id)
}

// calculateNextRun computes the job's next run time from `from`, or nil if
// the job should not run again (disabled, expired, or exhausted max_runs).
func calculateNextRun(j Job, from time.Time) *time.Time {
	if !j.Enabled || j.Expired() {
		return nil
	}
	if j.MaxRuns > 0 && j.RunCount >= j.MaxRuns {
		return nil
	}
	switch j.Kind {
	case KindAt:
		if j.RunCount > 0 {
			return nil
		}
		t, err := time.Parse(time.RFC3339, j.Schedule)
		if err != nil {
			return nil
		}
		return &t
	case KindEvery:
		d, err := ParseEvery(j.Schedule)
		if err != nil {
			return nil
		}
		next := from.Add(d)
		return &next
	case KindCron:
		schedule, err := cron.ParseStandard(j.Schedule)
		if err != nil {
			return nil
		}
		next := schedule.Next(from)
		return &next
	}
	return nil
}

// GetDue returns every enabled, non-expired job whose next_run is at or
// before now, ordered by next_run ascending so a driver processing them in
// order runs the soonest-due job first regardless of creation order.
func (s *Scheduler) GetDue(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Job
	for _, j := range s.jobs {
		if !j.Enabled || j.Expired() {
			continue
		}
		if j.NextRun == nil || j.NextRun.After(now) {
			continue
		}
		due = append(due, j)
	}
	sort.Slice(due, func(i, k int) bool {
		return due[i].NextRun.Before(*due[k].NextRun)
	})
	return due
}

// MarkExecuted records a job's execution outcome: last_run, run_count, and
// the freshly computed next_run (nil once exhausted).
func (s *Scheduler) MarkExecuted(id string, ok bool, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.jobs {
		if j.ID != id {
			continue
		}
		now := time.Now().UTC()
		s.jobs[i].LastRun = &now
		s.jobs[i].RunCount++
		s.jobs[i].LastResult = result
		s.jobs[i].LastResultOK = ok
		s.jobs[i].NextRun = calculateNextRun(s.jobs[i], now)
		return s.writeLocked()
	}
	return fmt.Errorf("scheduler: job %q not found", id)
}

// GetAll returns every job, including expired/disabled ones.
func (s *Scheduler) GetAll() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, len(s.jobs))
	copy(out, s.jobs)
	return out
}

// GetLastResult returns the last recorded execution result for a job. The
// third value is false when the job is unknown or has not run yet.
func (s *Scheduler) GetLastResult(id string) (string, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			return j.LastResult, j.LastResultOK, j.LastRun != nil
		}
	}
	return "", false, false
}
