package merge

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	instructionPolicyOnce sync.Once
	instructionPolicy     *bluemonday.Policy
)

// SanitizeInstructions strips markup from user-supplied placement guidance.
// Instructions travel to the merge provider and back into HTML surfaces, so
// only plain text survives.
func SanitizeInstructions(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(instructionSanitizer().Sanitize(trimmed))
}

func instructionSanitizer() *bluemonday.Policy {
	instructionPolicyOnce.Do(func() {
		instructionPolicy = bluemonday.StrictPolicy()
	})
	return instructionPolicy
}
