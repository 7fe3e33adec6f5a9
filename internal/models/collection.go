package models

import "time"

// ScheduleType selects how a campaign derives its capture days.
type ScheduleType string

const (
	ScheduleDates    ScheduleType = "dates"
	ScheduleWeekdays ScheduleType = "weekdays"
)

// ScheduleConfig describes one image collection campaign as submitted by the
// operator. It is immutable once accepted by the scheduler.
type ScheduleConfig struct {
	ScheduleType ScheduleType `json:"scheduleType" binding:"required"`

	// Used when ScheduleType == "dates".
	Dates []string `json:"dates,omitempty"`

	// Used when ScheduleType == "weekdays". Weekday indices are Monday=0
	// through Sunday=6, matching the frontend picker.
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Weekdays  []int  `json:"weekdays,omitempty"`

	// Hours of day (0-23); every (day, hour) pair becomes one capture slot.
	Hours []int `json:"hours" binding:"required"`

	TotalImages int    `json:"totalImages" binding:"required,gt=0"`
	Resolution  string `json:"resolution,omitempty"`
}

// CaptureSlot is one scheduled (date, hour) window during which a burst of
// captures runs. Slots are generated once per campaign and ordered by
// timestamp; only the Captured marker is ever mutated afterwards.
type CaptureSlot struct {
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Hour      int    `json:"hour"`
	Date      string `json:"date"`
	Captured  bool   `json:"captured,omitempty"`
}

// Time returns the slot start as a time.Time.
func (s CaptureSlot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// CampaignPhase is the lifecycle phase derived from a CollectionState.
type CampaignPhase string

const (
	PhaseIdle    CampaignPhase = "idle"
	PhaseRunning CampaignPhase = "running"
	PhasePaused  CampaignPhase = "paused"
)

// CollectionState is the single persisted aggregate for the current campaign.
type CollectionState struct {
	Active          bool          `json:"active"`
	Paused          bool          `json:"paused"`
	CollectedCount  int           `json:"collectedCount"`
	TotalCount      int           `json:"totalCount"`
	FolderName      string        `json:"folderName,omitempty"`
	FolderPath      string        `json:"folderPath,omitempty"`
	CaptureSchedule []CaptureSlot `json:"captureSchedule"`
	Resolution      string        `json:"resolution,omitempty"`
	NextCapture     *time.Time    `json:"nextCapture"`
}

// Phase reports the campaign lifecycle phase. Paused is only meaningful
// while active, so the paused flag alone never yields a phase of its own.
func (s CollectionState) Phase() CampaignPhase {
	switch {
	case s.Active && s.Paused:
		return PhasePaused
	case s.Active:
		return PhaseRunning
	default:
		return PhaseIdle
	}
}

// IdleState returns the empty state shape a cancelled or completed campaign
// resets to.
func IdleState() CollectionState {
	return CollectionState{CaptureSchedule: []CaptureSlot{}}
}

// CollectionStatus is the read-only snapshot returned by the status endpoint.
type CollectionStatus struct {
	Active         bool       `json:"active"`
	Paused         bool       `json:"paused"`
	CollectedCount int        `json:"collectedCount"`
	TotalCount     int        `json:"totalCount"`
	FolderName     string     `json:"folderName,omitempty"`
	NextCapture    *time.Time `json:"nextCapture"`
}

// StartResult is returned when a campaign is accepted.
type StartResult struct {
	FolderName string `json:"folderName"`
	TotalSlots int    `json:"totalSlots"`
}

// FolderInfo describes one collection folder on disk.
type FolderInfo struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	ImageCount int       `json:"imageCount"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
}
