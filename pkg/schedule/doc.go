// Package schedule provides scheduling implementations for recurring
// harvest sweeps.
//
// This package includes:
//   - Schedule interface for defining sweep schedules
//   - Every() for fixed-interval schedules
//   - Daily() for daily schedules at a specific time
//   - Weekly() for weekly schedules on a specific day and time
//   - Cron() for cron expression-based schedules
//   - Jitter() for staggering any of the above by a random offset
//
// Most users should import the root package github.com/eduvid/harvester
// which re-exports these functions.
package schedule
