package natsbus

import "fmt"

// Topic patterns for NATS pub/sub communication.

func TopicSwarmStarted(runID string) string {
	return fmt.Sprintf("events.swarm.%s.started", runID)
}

func TopicSwarmCompleted(runID string) string {
	return fmt.Sprintf("events.swarm.%s.completed", runID)
}

func TopicSwarmFailed(runID string) string {
	return fmt.Sprintf("events.swarm.%s.failed", runID)
}

func TopicSwarmNode(runID, node string) string {
	return fmt.Sprintf("events.swarm.%s.node.%s", runID, node)
}

func TopicTaskStarted(taskID string) string {
	return fmt.Sprintf("events.task.%s.started", taskID)
}

func TopicTaskCompleted(taskID string) string {
	return fmt.Sprintf("events.task.%s.completed", taskID)
}

func TopicTaskFailed(taskID string) string {
	return fmt.Sprintf("events.task.%s.failed", taskID)
}

func TopicSchedulerRun(queryID string) string {
	return fmt.Sprintf("events.scheduler.%s.run", queryID)
}

const (
	TopicEventsAll       = "events.>"
	TopicEventsTask      = "events.task.>"
	TopicEventsSwarm     = "events.swarm.>"
	TopicEventsScheduler = "events.scheduler.>"
)
