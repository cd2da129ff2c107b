// Package coop implements a cooperative task-scheduling and message-passing
// runtime. A fixed pool of worker threads drives many suspendable tasks;
// tasks coordinate over bounded channels and suspension-based locks, and
// wakers re-admit suspended tasks to the run queue when the condition they
// wait for becomes ready. No task ever blocks a worker thread.
package coop
