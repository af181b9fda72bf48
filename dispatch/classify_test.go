package dispatch

import (
	"testing"

	assert "github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		operation        string
		autoWrapDisabled bool
		want             Outcome
	}{
		{"edit-config", false, LockedCommitSequence},
		{"edit-config", true, DirectOperation},
		{"get", false, DirectOperation},
		{"get-config", false, DirectOperation},
		{"get-schema", false, DirectOperation},
		{"copy-config", false, DirectOperation},
		{"delete-config", false, DirectOperation},
		{"lock", false, DirectOperation},
		{"unlock", false, DirectOperation},
		{"close-session", false, DirectOperation},
		{"kill-session", true, DirectOperation},
		{"commit", false, GenericPassthrough},
		{"get-chassis-inventory", false, GenericPassthrough},
		{"rpc", false, GenericPassthrough},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.operation, tt.autoWrapDisabled), "operation %s auto-wrap disabled %v", tt.operation, tt.autoWrapDisabled)
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "locked-commit-sequence", LockedCommitSequence.String())
	assert.Equal(t, "direct-operation", DirectOperation.String())
	assert.Equal(t, "generic-passthrough", GenericPassthrough.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
