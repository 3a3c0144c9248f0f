package validation

import "testing"

func TestRequiredFieldsCheck(t *testing.T) {
	c := RequiredFieldsCheck{}
	contrib := c.Run(Input{
		Output:         map[string]any{"title": "x"},
		RequiredFields: []string{"title", "rating"},
	})
	if contrib.Confidence != 0 {
		t.Errorf("got confidence %v, want 0", contrib.Confidence)
	}
	if len(contrib.Issues) != 1 {
		t.Fatalf("got %v", contrib.Issues)
	}
}

func TestConfidenceThresholdCheck(t *testing.T) {
	c := ConfidenceThresholdCheck{Threshold: 0.5}
	ok := c.Run(Input{Output: map[string]any{"confidence": 0.9}})
	if ok.Hallucination {
		t.Error("should not flag high confidence")
	}
	bad := c.Run(Input{Output: map[string]any{"confidence": 0.2}})
	if !bad.Hallucination {
		t.Error("should flag low confidence")
	}
}

func TestForbiddenPatternCheck(t *testing.T) {
	c := ForbiddenPatternCheck{Patterns: []string{"TODO_PLACEHOLDER"}}
	bad := c.Run(Input{Output: map[string]any{"summary": "result is TODO_PLACEHOLDER"}})
	if !bad.Hallucination {
		t.Error("expected hallucination flag")
	}
	good := c.Run(Input{Output: map[string]any{"summary": "result is 42"}})
	if good.Hallucination {
		t.Error("did not expect hallucination flag")
	}
}

func TestAnchoredClaimCheck(t *testing.T) {
	c := AnchoredClaimCheck{}
	anchored := c.Run(Input{
		IsAIGenerated: true,
		ContextText:   "Tokyo weather forecast sunny temperature twenty two degrees",
		Output:        map[string]any{"summary": "The Tokyo forecast shows sunny conditions at twenty two degrees."},
	})
	if anchored.Hallucination {
		t.Errorf("expected no hallucination, got issues %v", anchored.Issues)
	}

	unanchored := c.Run(Input{
		IsAIGenerated: true,
		ContextText:   "Tokyo weather forecast sunny",
		Output:        map[string]any{"summary": "Giraffes migrate across unrelated continents during winter months entirely."},
	})
	if !unanchored.Hallucination {
		t.Error("expected hallucination for unrelated claim")
	}
}

func TestValidator_SchemaAndChecks(t *testing.T) {
	schema, err := CompileSchema(`{"type":"object","required":["result"],"properties":{"result":{"type":"number"}}}`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	v := New(Config{Strict: true, MinConfidence: 0.5})
	v.Register(RequiredFieldsCheck{})

	verdict := v.Validate(Input{
		Output:         map[string]any{"result": 42.0},
		RequiredFields: []string{"result"},
	}, schema)
	if !verdict.IsValid {
		t.Fatalf("expected valid, got issues %v", verdict.Issues)
	}

	bad := v.Validate(Input{
		Output:         map[string]any{"other": "x"},
		RequiredFields: []string{"result"},
	}, schema)
	if bad.IsValid {
		t.Error("expected invalid: missing required schema field and required_fields check")
	}
}

func TestInferSchema(t *testing.T) {
	schema := InferSchema(map[string]any{"title": "x", "rating": 4.5, "tags": []any{"a"}})
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("expected properties map")
	}
	if _, ok := props["title"]; !ok {
		t.Error("expected title property")
	}
}
