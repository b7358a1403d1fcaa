package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the routines service.
const (
	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for routine topics.
//
//	topics := mqtt.Topics{}
//	topics.RoutineRan("r-42") // "graylogic/core/routine/r-42/ran"
type Topics struct{}

// RoutineRan carries the run report published after a routine executes.
//
// Example: graylogic/core/routine/morning-lights/ran
func (Topics) RoutineRan(routineID string) string {
	return fmt.Sprintf("%s/routine/%s/ran", TopicPrefixCore, routineID)
}

// RoutineRun is where other services ask for an immediate run.
//
// Example: graylogic/core/routine/morning-lights/run
func (Topics) RoutineRun(routineID string) string {
	return fmt.Sprintf("%s/routine/%s/run", TopicPrefixCore, routineID)
}

// AllRoutineRuns matches run requests for every routine.
//
// Pattern: graylogic/core/routine/+/run
func (Topics) AllRoutineRuns() string {
	return fmt.Sprintf("%s/routine/+/run", TopicPrefixCore)
}

// ServiceStatus is the retained online/offline status of this service.
//
// Example: graylogic/system/routines/status
func (Topics) ServiceStatus() string {
	return fmt.Sprintf("%s/routines/status", TopicPrefixSystem)
}

// RoutineIDFromTopic extracts the routine id from a graylogic/core/routine/{id}/... topic.
// Returns false if the topic does not have that shape.
func RoutineIDFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefixCore+"/routine/")
	if !ok {
		return "", false
	}
	id, _, found := strings.Cut(rest, "/")
	if !found || id == "" {
		return "", false
	}
	return id, true
}
