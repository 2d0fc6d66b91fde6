package kafka

// Topic definitions for Kafka event streaming
const (
	// TopicAdvisorTurns carries one TurnCompleted event per finished turn
	TopicAdvisorTurns = "advisor.turns"
)
