package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredOutputEscalateHelpers(t *testing.T) {
	var out StructuredOutput
	assert.False(t, out.ShouldEscalate())

	out.ForceEscalate()
	assert.True(t, out.ShouldEscalate())

	// Forcing again never clears an escalation.
	out.ForceEscalate()
	assert.True(t, out.ShouldEscalate())
}

func TestStructuredOutputFlagHelpers(t *testing.T) {
	var out StructuredOutput
	out.AddFlag("AML_REVIEW_TRIGGERED")
	out.AddFlag("MANDATORY_ESCALATION")
	out.AddFlag("AML_REVIEW_TRIGGERED")

	want := []string{"AML_REVIEW_TRIGGERED", "MANDATORY_ESCALATION"}
	if diff := cmp.Diff(want, out.PolicyFlags); diff != "" {
		t.Fatalf("policy flags mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, out.HasFlag("MANDATORY_ESCALATION"))
	assert.False(t, out.HasFlag("LOW_CONFIDENCE_AUTO_RESOLVE"))
}

func TestSyncRawMergesMutationsAndKeepsExtras(t *testing.T) {
	raw := json.RawMessage(`{
		"issue_type": "WIRE_DELAY",
		"root_cause": "AML hold.",
		"resolution": "Waits out the review.",
		"resolution_type": "AUTO_RESOLVED",
		"confidence_score": 0.9,
		"escalate": false,
		"policy_flags": ["AML_REVIEW_TRIGGERED"],
		"aml_reference": "WIRE-77-5521"
	}`)
	var out StructuredOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	out.Raw = raw

	out.AddFlag("MANDATORY_ESCALATION")
	out.ForceEscalate()
	out.SyncRaw()

	var merged map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Raw, &merged))

	assert.Equal(t, true, merged["escalate"])
	assert.Equal(t, "WIRE-77-5521", merged["aml_reference"])

	wantFlags := []interface{}{"AML_REVIEW_TRIGGERED", "MANDATORY_ESCALATION"}
	if diff := cmp.Diff(wantFlags, merged["policy_flags"]); diff != "" {
		t.Fatalf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncRawNoRawIsNoop(t *testing.T) {
	var out StructuredOutput
	out.SyncRaw()
	assert.Empty(t, out.Raw)
}
