package failure

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"retail-assist/internal/llm"
)

func TestClassifyOverloaded(t *testing.T) {
	c := Classify("503 service unavailable, model overloaded", "")
	assert.Equal(t, KindOverloaded, c.Kind)
	assert.Equal(t, "10", c.RetryAfter)
}

func TestClassifyOverloadedByTag(t *testing.T) {
	c := Classify("upstream rejected request", llm.TagUnavailable)
	assert.Equal(t, KindOverloaded, c.Kind)
	assert.Equal(t, "10", c.RetryAfter)
}

func TestClassifyQuotaWithRetryHint(t *testing.T) {
	c := Classify("RESOURCE_EXHAUSTED: retry in 12.5s", "")
	assert.Equal(t, KindQuotaExceeded, c.Kind)
	assert.Equal(t, "12.5", c.RetryAfter)
}

func TestClassifyQuotaDefaultsRetry(t *testing.T) {
	c := Classify("429 too many requests", "")
	assert.Equal(t, KindQuotaExceeded, c.Kind)
	assert.Equal(t, "30", c.RetryAfter)
}

func TestClassifyQuotaByExceededLimit(t *testing.T) {
	c := Classify("request limit exceeded for project", "")
	assert.Equal(t, KindQuotaExceeded, c.Kind)
}

func TestClassifyUnknown(t *testing.T) {
	c := Classify("connection refused", "")
	assert.Equal(t, KindUnclassified, c.Kind)
	assert.Empty(t, c.RetryAfter)
}

func TestOverloadBeatsQuotaOnMixedMessage(t *testing.T) {
	// Both vocabularies present; overload is checked first.
	c := Classify("503 unavailable, quota nearly exceeded", "")
	assert.Equal(t, KindOverloaded, c.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "quota_exceeded", KindQuotaExceeded.String())
	assert.Equal(t, "overloaded", KindOverloaded.String())
	assert.Equal(t, "unclassified", KindUnclassified.String())
}

func TestUserMessageFormatsWait(t *testing.T) {
	msg := UserMessage(Classification{Kind: KindQuotaExceeded, RetryAfter: "90"})
	assert.Contains(t, msg, "1 minute 30 seconds")

	msg = UserMessage(Classification{Kind: KindQuotaExceeded, RetryAfter: "61"})
	assert.Contains(t, msg, "1 minute 1 second")

	msg = UserMessage(Classification{Kind: KindQuotaExceeded, RetryAfter: "12.5"})
	assert.Contains(t, msg, "13 seconds")

	msg = UserMessage(Classification{Kind: KindOverloaded, RetryAfter: "10"})
	assert.Contains(t, msg, "10 seconds")

	msg = UserMessage(Classification{Kind: KindQuotaExceeded, RetryAfter: "1"})
	assert.Contains(t, msg, "1 second")
	assert.NotContains(t, msg, "1 seconds")
}
