// Package board provides the shared vocabulary of the tandem engine: task and
// worker types, the channel payloads exchanged between components, the ordered
// in-process event Bus, and the Redis bridge Client that mirrors bus traffic to
// external collaborators.
//
// # Overview
//
// Every tandem component (task registry, dedup cache, routers, recruitment
// engine) talks to the others exclusively through the Bus. The Bus is
// single-threaded and cooperative: a published event is fully dispatched to
// every matching subscriber, in registration order, before the next queued
// event is processed.
//
// # Channels
//
//	task.created        Task snapshot            registry -> dedup, observers
//	task.delegated      Delegated                routers  -> registry
//	task.swarmed        Swarmed                  recruit  -> registry
//	task.progress       Progress                 executors -> registry
//	task.completed      Completed                executors -> registry, recruit, routers
//	task.failed         Failed                   executors -> registry, recruit, routers
//	task.finalized      Task snapshot            registry -> routers, observers
//	bridge.duplicate    Duplicate                dedup    -> originator
//	authority.newTask   Forward                  primary  -> mirror
//	<queue>.task        QueueTask                routers  -> work-queue consumers
//
// # Redis Schema
//
// When a Client is attached, bus events are mirrored to Redis. All keys and
// channels are namespaced by instance name:
//
//	tandem:{instance}:events      Pub/Sub mirror of every bus event
//	tandem:{instance}:event_log   capped list of recent events
//	tandem:{instance}:commands    inbound command envelopes
//	tandem:{instance}:stats       latest registry statistics (JSON)
package board
