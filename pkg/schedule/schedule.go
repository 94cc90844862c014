package schedule

import (
	"math/rand"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule computes the next run time for a recurring harvest sweep.
type Schedule interface {
	// Next returns the next run time strictly after from.
	Next(from time.Time) time.Time
}

// Func adapts a plain function to the Schedule interface.
type Func func(from time.Time) time.Time

func (f Func) Next(from time.Time) time.Time { return f(from) }

// Every runs a sweep at fixed intervals.
func Every(d time.Duration) Schedule {
	return Func(func(from time.Time) time.Time {
		return from.Add(d)
	})
}

// Daily runs a sweep at the given UTC wall-clock time each day.
func Daily(hour, minute int) Schedule {
	return Func(func(from time.Time) time.Time {
		from = from.UTC()
		next := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, time.UTC)
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	})
}

// Weekly runs a sweep at the given UTC day and wall-clock time each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return Func(func(from time.Time) time.Time {
		from = from.UTC()
		ahead := int(day-from.Weekday()+7) % 7
		next := time.Date(from.Year(), from.Month(), from.Day()+ahead, hour, minute, 0, 0, time.UTC)
		if !next.After(from) {
			next = next.AddDate(0, 0, 7)
		}
		return next
	})
}

// Cron runs a sweep per a five-field cron expression (minute hour dom
// month dow). Panics on an invalid expression so misconfiguration
// surfaces at startup, not mid-run.
func Cron(expr string) Schedule {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		panic("invalid cron expression: " + err.Error())
	}
	return Func(sched.Next)
}

// Jitter delays each tick of s by a random amount up to max, so several
// deployments sharing a schedule do not hit the search provider at the
// same instant. A non-positive max returns s unchanged.
func Jitter(s Schedule, max time.Duration) Schedule {
	if max <= 0 {
		return s
	}
	return Func(func(from time.Time) time.Time {
		return s.Next(from).Add(time.Duration(rand.Int63n(int64(max))))
	})
}
