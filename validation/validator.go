// Package validation implements the Validator (C8): schema validation
// against a per-agent output_schema, plus a pluggable list of
// semantic/hallucination checks, producing a combined Verdict.
package validation

// Verdict is the Validator's combined output for one agent invocation.
type Verdict struct {
	IsValid               bool               `json:"is_valid"`
	ConfidenceScore       float64            `json:"confidence_score"`
	HallucinationDetected bool               `json:"hallucination_detected"`
	Issues                []string           `json:"issues,omitempty"`
	PerFieldScores        map[string]float64 `json:"per_field_scores,omitempty"`
}

// Input bundles everything a Check needs to evaluate one agent output.
type Input struct {
	// Output is the agent's output data (registry.Descriptor-declared
	// output_schema validates against this).
	Output map[string]any
	// RequiredFields are field names (registry.Descriptor.RequiredFields)
	// that must be present and non-empty in Output.
	RequiredFields []string
	// ContextText is the text the output was generated from (e.g. the
	// original query plus any upstream step outputs); used by the
	// anchored-claim check to cross-check AI-generated content.
	ContextText string
	// IsAIGenerated marks output as coming from a generative model, so the
	// anchored-claim check only runs where it's meaningful.
	IsAIGenerated bool
}

// Check is one semantic/hallucination check. Checks are evaluated in
// registration order and their contributions combined (min confidence,
// union of issues, any hallucination flag wins), mirroring how
// plugin.Manager runs an ordered list of lifecycle-stage plugins.
type Check interface {
	Name() string
	Run(in Input) Contribution
}

// Contribution is one Check's partial verdict.
type Contribution struct {
	Issues        []string
	Confidence    float64 // in [0,1]; 1 means "no concern from this check"
	Hallucination bool
}

// Config configures the Validator.
type Config struct {
	// Strict turns any schema violation into a step failure; when false,
	// violations are recorded as issues but do not fail the step.
	Strict bool
	// MinConfidence is the floor below which IsValid is forced false even
	// if no Check reported hallucination.
	MinConfidence float64
	// RetryOnHallucination and MaxRevalidationAttempts are read by the
	// Executor, not the Validator itself, but are kept alongside the rest
	// of the Validator's config since they govern the same validation pass.
	RetryOnHallucination   bool
	MaxRevalidationAttempts int
}

// Validator runs schema validation followed by an ordered list of semantic
// checks.
type Validator struct {
	cfg    Config
	checks []Check
}

// New creates a Validator with the given config and an initially empty
// check list.
func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Config returns the Validator's configuration, including the
// RetryOnHallucination/MaxRevalidationAttempts settings the Executor reads
// to decide whether and how many times to rerun a flagged step.
func (v *Validator) Config() Config {
	return v.cfg
}

// Register appends a Check to the ordered pipeline.
func (v *Validator) Register(c Check) {
	v.checks = append(v.checks, c)
}

// Checks returns the names of all registered checks, in run order.
func (v *Validator) Checks() []string {
	names := make([]string, len(v.checks))
	for i, c := range v.checks {
		names[i] = c.Name()
	}
	return names
}

// Validate runs schema validation (if schema is non-nil) then every
// registered semantic check against in, producing a single combined
// Verdict.
func (v *Validator) Validate(in Input, schema *Schema) Verdict {
	verdict := Verdict{IsValid: true, ConfidenceScore: 1.0}

	if schema != nil {
		for _, vi := range schema.Validate(in.Output) {
			verdict.Issues = append(verdict.Issues, vi.String())
			if v.cfg.Strict {
				verdict.IsValid = false
			}
		}
	}

	for _, c := range v.checks {
		contrib := c.Run(in)
		verdict.Issues = append(verdict.Issues, contrib.Issues...)
		if contrib.Hallucination {
			verdict.HallucinationDetected = true
		}
		if contrib.Confidence < verdict.ConfidenceScore {
			verdict.ConfidenceScore = contrib.Confidence
		}
	}

	if verdict.HallucinationDetected {
		verdict.IsValid = false
	}
	if v.cfg.MinConfidence > 0 && verdict.ConfidenceScore < v.cfg.MinConfidence {
		verdict.IsValid = false
	}

	return verdict
}
