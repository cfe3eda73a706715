// Package reminder owns the assignment-to-reminder side of the sync
// engine. The Coordinator computes fire times from due dates, schedules
// and cancels local alerts through the notification gateway, and
// reconciles the full reminder set against the current assignments.
//
// Reminders are never scheduled in the past: when dueAt minus the offset
// has already gone by, scheduling is a silent success with no gateway
// call. The Coordinator exclusively owns the assignment-to-reminder
// mapping.
package reminder
