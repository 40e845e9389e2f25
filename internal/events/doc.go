// Package events decouples the generation service from the background task
// layer. The service emits a TaskRequestEvent when it needs a continuation
// sub-job scheduled; a handler in the task layer turns the event into a
// durable task. Neither side imports the other, which keeps the service free
// of queue internals and the task layer free of orchestration logic.
package events
