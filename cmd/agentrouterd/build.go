package main

import (
	"fmt"
	"time"

	aigateway "github.com/ferro-labs/agentrouter"
	"github.com/ferro-labs/agentrouter/audit"
	"github.com/ferro-labs/agentrouter/execution"
	"github.com/ferro-labs/agentrouter/internal/retry"
	"github.com/ferro-labs/agentrouter/orchestrator"
	"github.com/ferro-labs/agentrouter/planning"
	"github.com/ferro-labs/agentrouter/providers"
	"github.com/ferro-labs/agentrouter/reasoning"
	agentregistry "github.com/ferro-labs/agentrouter/registry"
	"github.com/ferro-labs/agentrouter/validation"
)

// stack bundles every long-lived dependency serve and its admin surface
// need, so main can wire the HTTP router without re-deriving any of it.
type stack struct {
	cfg          aigateway.Config
	gateway      *aigateway.Gateway
	providerReg  *providers.Registry
	agentReg     *agentregistry.Registry
	orchestrator *orchestrator.Orchestrator
	auditLogger  *audit.Logger
	auditSQL     *audit.SQLSink // non-nil only when audit.sink is sqlite/postgres
}

// buildStack wires the Gateway Router (C1-C3) and the Agent Orchestration
// Core (C4-C10) from cfg, following cmd/ferrogw/main.go's own
// build-then-wire order: providers first, then the gateway, then
// everything that depends on it.
func buildStack(cfg aigateway.Config) (*stack, error) {
	providerReg := providers.NewRegistry()
	registerEnvProviders(providerReg)

	gwCfg := cfg
	if len(gwCfg.Targets) == 0 {
		for _, name := range providerReg.List() {
			gwCfg.Targets = append(gwCfg.Targets, aigateway.Target{VirtualKey: name})
		}
		if gwCfg.Strategy.Mode == "" {
			gwCfg.Strategy.Mode = aigateway.ModeFallback
		}
	}

	gw, err := aigateway.New(gwCfg)
	if err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}
	for _, name := range providerReg.List() {
		if p, ok := providerReg.Get(name); ok {
			gw.RegisterProvider(p)
		}
	}
	if len(gwCfg.Plugins) > 0 {
		if err := gw.LoadPlugins(); err != nil {
			return nil, fmt.Errorf("load plugins: %w", err)
		}
	}

	agentReg := agentregistry.New()
	if cfg.Orchestrator.Registry.AgentsFile != "" {
		if err := agentregistry.LoadAndRegisterFile(agentReg, cfg.Orchestrator.Registry.AgentsFile); err != nil {
			return nil, fmt.Errorf("load agents file: %w", err)
		}
	}

	reasonerCfg := cfg.Orchestrator.Reasoner
	var rules []reasoning.Rule
	if reasonerCfg.RulesFile != "" {
		rules, err = reasoning.LoadRulesFile(reasonerCfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("load rules file: %w", err)
		}
	}
	threshold := reasonerCfg.RuleAcceptThreshold
	if threshold <= 0 {
		threshold = 0.7
	}
	ruleStrategy := reasoning.NewRuleStrategy(reasoning.NewRuleTable(rules), threshold)

	model := reasonerCfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	fallbackOrder := providerReg.List()
	generator := orchestrator.NewGatewayGenerator(gw, model, reasonerCfg.Provider, fallbackOrder, len(fallbackOrder))
	aiStrategy := reasoning.NewAIStrategy(generator, agentReg)

	mode := reasoning.Mode(reasonerCfg.Mode)
	if mode == "" {
		mode = reasoning.ModeHybrid
	}
	reasoner := reasoning.New(reasoning.Config{Mode: mode, RuleAcceptThreshold: threshold}, ruleStrategy, aiStrategy)

	validatorCfg := cfg.Orchestrator.Validator
	validator := validation.New(validation.Config{
		Strict:                  validatorCfg.Strict,
		MinConfidence:           validatorCfg.MinConfidence,
		RetryOnHallucination:    validatorCfg.RetryOnHallucination,
		MaxRevalidationAttempts: validatorCfg.MaxRevalidationAttempts,
	})
	validator.Register(validation.RequiredFieldsCheck{})
	if validatorCfg.MinConfidence > 0 {
		validator.Register(validation.ConfidenceThresholdCheck{Threshold: validatorCfg.MinConfidence})
	}
	validator.Register(validation.AnchoredClaimCheck{})

	schemas := map[string]*validation.Schema{}
	for _, d := range agentReg.List() {
		if len(d.OutputSchema) == 0 {
			continue
		}
		schema, err := validation.CompileSchemaMap(d.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("compile output_schema for agent %q: %w", d.Name, err)
		}
		schemas[d.Name] = schema
	}

	cbCfg := cfg.Orchestrator.Executor.CircuitBreaker
	cooldown := parseDurationOr(cbCfg.Timeout, 30*time.Second)
	failThreshold := cbCfg.FailureThreshold
	if failThreshold <= 0 {
		failThreshold = 5
	}
	successThreshold := cbCfg.SuccessThreshold
	if successThreshold <= 0 {
		successThreshold = 1
	}
	breakers := retry.NewBreakerStore(failThreshold, successThreshold, cooldown)

	execCfg := execution.Config{
		MaxParallelAgents:  cfg.Orchestrator.Executor.MaxParallelAgents,
		DefaultStepTimeout: parseDurationOr(cfg.Orchestrator.Executor.DefaultStepTimeout, 10*time.Second),
	}

	failureMode := planning.BestEffort
	if cfg.Orchestrator.Executor.FailureMode == string(planning.FailFast) {
		failureMode = planning.FailFast
	}

	auditLogger, auditSQL, err := buildAuditLogger(cfg.Orchestrator.Audit)
	if err != nil {
		return nil, fmt.Errorf("build audit sink: %w", err)
	}

	resolver := orchestrator.NewInvokerResolver(agentReg)
	orch := orchestrator.New(agentReg, reasoner, resolver, breakers, validator, schemas, auditLogger, execCfg, failureMode)

	return &stack{
		cfg:          cfg,
		gateway:      gw,
		providerReg:  providerReg,
		agentReg:     agentReg,
		orchestrator: orch,
		auditLogger:  auditLogger,
		auditSQL:     auditSQL,
	}, nil
}

// buildAuditLogger builds the Audit Logger (C10) over whichever Sink
// cfg.Sink names. cfg.Sink defaults to "file" in cfg.Dir (or "./audit-logs"
// if unset).
func buildAuditLogger(cfg aigateway.AuditConfig) (*audit.Logger, *audit.SQLSink, error) {
	switch cfg.Sink {
	case "", "file":
		dir := cfg.Dir
		if dir == "" {
			dir = "./audit-logs"
		}
		sink, err := audit.NewJSONFileSink(dir)
		if err != nil {
			return nil, nil, err
		}
		return audit.New(sink), nil, nil
	case "sqlite":
		sink, err := audit.NewSQLiteSQLSink(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return audit.New(sink), sink, nil
	case "postgres":
		sink, err := audit.NewPostgresSQLSink(cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return audit.New(sink), sink, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit sink %q", cfg.Sink)
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
