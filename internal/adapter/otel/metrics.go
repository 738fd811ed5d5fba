package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "vitalis"

// Metrics holds all Vitalis metric instruments.
type Metrics struct {
	GenerationsStarted  metric.Int64Counter
	GenerationsDegraded metric.Int64Counter
	AgentsDeployed      metric.Int64Counter
	AgentsRevised       metric.Int64Counter
	RunsCompleted       metric.Int64Counter
	RunsFailed          metric.Int64Counter
	ToolCalls           metric.Int64Counter
	ApprovalsRequested  metric.Int64Counter
	RunDuration         metric.Float64Histogram
	RewardMean          metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.GenerationsStarted, err = meter.Int64Counter("vitalis.generations.started",
		metric.WithDescription("Number of agent generation pipelines started"))
	if err != nil {
		return nil, err
	}

	m.GenerationsDegraded, err = meter.Int64Counter("vitalis.generations.degraded",
		metric.WithDescription("Number of generations that fell back to a degraded deployment"))
	if err != nil {
		return nil, err
	}

	m.AgentsDeployed, err = meter.Int64Counter("vitalis.agents.deployed",
		metric.WithDescription("Number of agent configurations deployed"))
	if err != nil {
		return nil, err
	}

	m.AgentsRevised, err = meter.Int64Counter("vitalis.agents.revised",
		metric.WithDescription("Number of RLAIF revisions deployed"))
	if err != nil {
		return nil, err
	}

	m.RunsCompleted, err = meter.Int64Counter("vitalis.runs.completed",
		metric.WithDescription("Number of agent runs completed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("vitalis.runs.failed",
		metric.WithDescription("Number of agent runs failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("vitalis.toolcalls",
		metric.WithDescription("Number of tool calls executed"))
	if err != nil {
		return nil, err
	}

	m.ApprovalsRequested, err = meter.Int64Counter("vitalis.approvals.requested",
		metric.WithDescription("Number of approval requests raised"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("vitalis.run.duration_seconds",
		metric.WithDescription("Agent run duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.RewardMean, err = meter.Float64Histogram("vitalis.reward.mean",
		metric.WithDescription("Mean reward per monitoring cycle"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
