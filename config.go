package aigateway

// Config holds the configuration for the AI Gateway.
type Config struct {
	// Strategy defines how requests are routed (e.g., single, fallback, loadbalance).
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	// Targets is a list of provider targets to route requests to.
	Targets []Target `json:"targets" yaml:"targets"`
	// Plugins configuration (optional).
	Plugins []PluginConfig `json:"plugins,omitempty" yaml:"plugins,omitempty"`
	// Aliases maps a model alias to the model name the request is routed with.
	Aliases map[string]string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// Orchestrator configures the agent-orchestration layer (reasoner,
	// registry, executor, validator, audit). Zero value is valid: every
	// section below defaults sensibly when omitted.
	Orchestrator OrchestratorConfig `json:"orchestrator,omitempty" yaml:"orchestrator,omitempty"`
}

// OrchestratorConfig groups the config sections the agent-orchestration
// core reads, kept alongside the Gateway Router's own Config so a single
// file configures both cores.
type OrchestratorConfig struct {
	Reasoner  ReasonerConfig  `json:"reasoner,omitempty" yaml:"reasoner,omitempty"`
	Registry  RegistryConfig  `json:"registry,omitempty" yaml:"registry,omitempty"`
	Executor  ExecutorConfig  `json:"executor,omitempty" yaml:"executor,omitempty"`
	Validator ValidatorConfig `json:"validator,omitempty" yaml:"validator,omitempty"`
	Audit     AuditConfig     `json:"audit,omitempty" yaml:"audit,omitempty"`
}

// ReasonerConfig configures the Reasoner (C5): which strategy combination to
// use and the confidence threshold at which the rule strategy's match is
// accepted without falling through to the AI strategy.
type ReasonerConfig struct {
	Mode                string  `json:"mode" yaml:"mode"` // "rule", "ai", or "hybrid"
	RuleAcceptThreshold float64 `json:"rule_accept_threshold" yaml:"rule_accept_threshold"`
	RulesFile           string  `json:"rules_file,omitempty" yaml:"rules_file,omitempty"`
	Model               string  `json:"model,omitempty" yaml:"model,omitempty"`
	Provider            string  `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// RegistryConfig configures the Agent Registry (C4): the file agent
// descriptors are loaded from at startup. HealthCheckPeriod is accepted in
// the config file but nothing reads it; no background health checks run.
type RegistryConfig struct {
	AgentsFile        string `json:"agents_file,omitempty" yaml:"agents_file,omitempty"`
	HealthCheckPeriod string `json:"health_check_period,omitempty" yaml:"health_check_period,omitempty"`
}

// ExecutorConfig configures the Executor (C7): parallelism bound, default
// per-step timeout, failure mode, and the circuit breaker shared by every
// agent target's BreakerStore entry.
type ExecutorConfig struct {
	MaxParallelAgents  int                  `json:"max_parallel_agents" yaml:"max_parallel_agents"`
	DefaultStepTimeout string               `json:"default_step_timeout,omitempty" yaml:"default_step_timeout,omitempty"`
	FailureMode        string               `json:"failure_mode" yaml:"failure_mode"` // "fail_fast" or "best_effort"
	CircuitBreaker     CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
}

// ValidatorConfig configures the output Validator (C8).
type ValidatorConfig struct {
	Strict                  bool    `json:"strict" yaml:"strict"`
	MinConfidence           float64 `json:"min_confidence" yaml:"min_confidence"`
	RetryOnHallucination    bool    `json:"retry_on_hallucination" yaml:"retry_on_hallucination"`
	MaxRevalidationAttempts int     `json:"max_revalidation_attempts" yaml:"max_revalidation_attempts"`
}

// AuditConfig configures the Audit Logger (C10): which sink backs it and
// where traces land.
type AuditConfig struct {
	Sink       string `json:"sink" yaml:"sink"` // "file", "sqlite", or "postgres"
	Dir        string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DSN        string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// StrategyConfig defines the routing strategy.
type StrategyConfig struct {
	Mode       StrategyMode `json:"mode" yaml:"mode"`
	Conditions []Condition  `json:"conditions,omitempty" yaml:"conditions,omitempty"` // For conditional routing
}

// StrategyMode represents the routing strategy mode.
type StrategyMode string

// StrategyMode constants define the supported routing strategies.
const (
	ModeSingle      StrategyMode = "single"
	ModeFallback    StrategyMode = "fallback"
	ModeLoadBalance StrategyMode = "loadbalance"
	ModeConditional StrategyMode = "conditional"
)

// Condition represents a condition for conditional routing.
type Condition struct {
	Key       string `json:"key" yaml:"key"`
	Value     string `json:"value" yaml:"value"`
	TargetKey string `json:"target_key" yaml:"target_key"`
}

// Target represents a specific provider target.
type Target struct {
	// VirtualKey is the unique identifier for the provider (or a virtual key in the vault).
	VirtualKey string `json:"virtual_key" yaml:"virtual_key"`
	// Weight is used for load balancing.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	// Retry configuration for this target.
	Retry *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	// CircuitBreaker configuration for this target (optional).
	CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts int `json:"attempts" yaml:"attempts"`
}

// CircuitBreakerConfig configures the per-provider circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the circuit
	// opens. Defaults to 5.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`
	// SuccessThreshold is the number of consecutive successes in half-open state
	// required to close the circuit. Defaults to 1.
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`
	// Timeout is the duration the circuit stays open before transitioning to
	// half-open (e.g. "30s"). Defaults to "30s".
	Timeout string `json:"timeout" yaml:"timeout"`
}

// PluginConfig holds plugin configuration.
type PluginConfig struct {
	Name    string                 `json:"name" yaml:"name"`
	Type    string                 `json:"type" yaml:"type"`
	Stage   string                 `json:"stage" yaml:"stage"`
	Enabled bool                   `json:"enabled" yaml:"enabled"`
	Config  map[string]interface{} `json:"config" yaml:"config"`
}
