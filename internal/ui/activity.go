package ui

import "time"

// ActivityStatus is the state of one entry in the activity pane
type ActivityStatus int

const (
	ActivityRunning ActivityStatus = iota
	ActivitySuccess
	ActivityFailed
)

const maxActivityLines = 2000

// Activity is a tab in the activity pane: the system log or one emulator
// launch attempt.
type Activity struct {
	ID        string
	Name      string
	Status    ActivityStatus
	StartTime time.Time
	EndTime   time.Time
	Logs      []string
}

// Duration returns how long the activity has been running or ran
func (a *Activity) Duration() time.Duration {
	if a.Status == ActivityRunning {
		return time.Since(a.StartTime)
	}
	return a.EndTime.Sub(a.StartTime)
}

// StatusIcon returns an icon for the activity status
func (a *Activity) StatusIcon() string {
	switch a.Status {
	case ActivityRunning:
		return "◐"
	case ActivitySuccess:
		return "✓"
	case ActivityFailed:
		return "✗"
	}
	return "?"
}

// AddLog appends a timestamped line, keeping the most recent lines
func (a *Activity) AddLog(at time.Time, line string) {
	a.Logs = append(a.Logs, "["+at.Format("15:04:05")+"] "+line)
	if len(a.Logs) > maxActivityLines {
		a.Logs = a.Logs[len(a.Logs)-maxActivityLines:]
	}
}

// Finish marks the activity as done
func (a *Activity) Finish(at time.Time, ok bool) {
	if a.Status != ActivityRunning {
		return
	}
	a.Status = ActivityFailed
	if ok {
		a.Status = ActivitySuccess
	}
	a.EndTime = at
}
