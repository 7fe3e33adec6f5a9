package collection

import (
	"fmt"
	"sort"
	"time"

	"pivision/internal/models"
)

const dateLayout = "2006-01-02"

// Generate expands a campaign config into the flat, ascending list of
// capture slots. It is a pure function of (cfg, now): slots at or before now
// are silently dropped, duplicates in the input produce duplicate slots, and
// an empty result is ErrInvalidSchedule.
func Generate(cfg models.ScheduleConfig, now time.Time) ([]models.CaptureSlot, error) {
	var slots []models.CaptureSlot

	switch cfg.ScheduleType {
	case models.ScheduleDates:
		for _, ds := range cfg.Dates {
			day, err := time.ParseInLocation(dateLayout, ds, time.Local)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid date %q", ErrInvalidSchedule, ds)
			}
			slots = appendDaySlots(slots, day, cfg.Hours, now)
		}

	case models.ScheduleWeekdays:
		start, err := time.ParseInLocation(dateLayout, cfg.StartDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid start date %q", ErrInvalidSchedule, cfg.StartDate)
		}
		end, err := time.ParseInLocation(dateLayout, cfg.EndDate, time.Local)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid end date %q", ErrInvalidSchedule, cfg.EndDate)
		}
		for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
			if !containsWeekday(cfg.Weekdays, day.Weekday()) {
				continue
			}
			slots = appendDaySlots(slots, day, cfg.Hours, now)
		}

	default:
		return nil, fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, cfg.ScheduleType)
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Timestamp < slots[j].Timestamp
	})

	if len(slots) == 0 {
		return nil, ErrInvalidSchedule
	}
	return slots, nil
}

// appendDaySlots crosses one calendar day with the configured hours,
// keeping only slots strictly in the future.
func appendDaySlots(slots []models.CaptureSlot, day time.Time, hours []int, now time.Time) []models.CaptureSlot {
	for _, hour := range hours {
		at := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
		if !at.After(now) {
			continue
		}
		slots = append(slots, models.CaptureSlot{
			Timestamp: at.UnixMilli(),
			Hour:      hour,
			Date:      day.Format(dateLayout),
		})
	}
	return slots
}

// containsWeekday matches the frontend's Monday=0 … Sunday=6 indexing
// against Go's Sunday=0 weekdays.
func containsWeekday(weekdays []int, wd time.Weekday) bool {
	idx := (int(wd) + 6) % 7
	for _, w := range weekdays {
		if w == idx {
			return true
		}
	}
	return false
}
