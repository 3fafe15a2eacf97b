package domain

import "time"

// ConnectOutcome labels how a connect attempt ended.
type ConnectOutcome string

const (
	// ConnectOutcomeSuccess indicates a live session was established.
	ConnectOutcomeSuccess ConnectOutcome = "success"
	// ConnectOutcomeFailure indicates the attempt failed.
	ConnectOutcomeFailure ConnectOutcome = "failure"
	// ConnectOutcomeMock indicates degraded mode registered a mock backend.
	ConnectOutcomeMock ConnectOutcome = "mock"
)

// ExecuteStatus labels the outcome of a forwarded tool call.
type ExecuteStatus string

const (
	ExecuteStatusSuccess ExecuteStatus = "success"
	ExecuteStatusError   ExecuteStatus = "error"
)

// GateMetric captures one gating selection.
type GateMetric struct {
	Policy      string
	Selected    int
	TotalTokens int
}

// Metrics records operational metrics for the gateway core.
type Metrics interface {
	ObserveConnect(backend string, duration time.Duration, outcome ConnectOutcome)
	SetLiveSessions(count int)
	ObserveDiscovery(backend string, duration time.Duration, registered int)
	SetCatalogSize(count int)
	ObserveSearch(duration time.Duration, results int)
	ObserveExecute(backend string, duration time.Duration, status ExecuteStatus)
	ObserveGate(metric GateMetric)
	ObserveAdvisorLatency(provider string, model string, duration time.Duration)
	ObserveAdvisorTokens(provider string, model string, tokens int)
}
