// Package poller drives a task on a jittered schedule: wait a random whole
// number of seconds between MinInterval and MaxInterval, run the task, repeat.
package poller
