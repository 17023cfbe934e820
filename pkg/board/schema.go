package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so
// several tandem instances can share one Redis server.
//
// Key pattern: tandem:{instance_name}:{entity}

// EventsChannel returns the Pub/Sub channel mirroring every bus event.
// Pattern: tandem:{instance_name}:events
func EventsChannel(instanceName string) string {
	return fmt.Sprintf("tandem:%s:events", instanceName)
}

// CommandsChannel returns the Pub/Sub channel carrying inbound command envelopes.
// Pattern: tandem:{instance_name}:commands
func CommandsChannel(instanceName string) string {
	return fmt.Sprintf("tandem:%s:commands", instanceName)
}

// EventLogKey returns the Redis key of the capped recent-events list.
// Pattern: tandem:{instance_name}:event_log
func EventLogKey(instanceName string) string {
	return fmt.Sprintf("tandem:%s:event_log", instanceName)
}

// StatsKey returns the Redis key holding the latest registry statistics.
// Pattern: tandem:{instance_name}:stats
func StatsKey(instanceName string) string {
	return fmt.Sprintf("tandem:%s:stats", instanceName)
}
