// Package router turns loosely structured inbound commands into tasks bound
// to a work-queue.
//
// Two routers exist, one per authority. The primary router receives every
// command, classifies it, consults the dedup cache and creates the task. Work
// owned by the mirror authority is forwarded on authority.newTask carrying the
// task id, and the mirror router reuses that task, so a task shared by both
// towers stays one task with two delegation branches. The routers never hold
// references to each other; the bus is their only link.
package router
