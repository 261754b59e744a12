// Package failure maps heterogeneous backend failures onto a small taxonomy
// with retry hints. Classification is a pure function over the failure message
// and the machine-readable tag attached by backend adapters.
package failure

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"retail-assist/internal/llm"
)

type Kind int

const (
	KindUnclassified Kind = iota
	KindQuotaExceeded
	KindOverloaded
)

func (k Kind) String() string {
	switch k {
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindOverloaded:
		return "overloaded"
	default:
		return "unclassified"
	}
}

// Classification is produced per failure and never persisted. RetryAfter is a
// decimal seconds string; empty when no wait hint applies.
type Classification struct {
	Kind       Kind
	RetryAfter string
}

const (
	overloadRetryAfter     = "10"
	defaultQuotaRetryAfter = "30"
)

// Providers embed a machine-readable delay of the form "retry in 12.5s".
var retryDelayPattern = regexp.MustCompile(`(?i)retry in (\d+\.?\d*)s`)

// Classify evaluates the rules in order; the first match wins. Matching is
// case-insensitive on both the message and the tag.
func Classify(message, tag string) Classification {
	msg := strings.ToLower(message)
	t := strings.ToLower(tag)

	// Transient capacity saturation: short wait, distinct from quota exhaustion.
	if t == llm.TagUnavailable ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "503") {
		return Classification{Kind: KindOverloaded, RetryAfter: overloadRetryAfter}
	}

	if t == llm.TagResourceExhausted ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted") {
		return Classification{Kind: KindQuotaExceeded, RetryAfter: extractRetryDelay(msg)}
	}

	if strings.Contains(msg, "429") || strings.Contains(msg, "quota") {
		return Classification{Kind: KindQuotaExceeded, RetryAfter: extractRetryDelay(msg)}
	}

	if strings.Contains(msg, "exceeded") &&
		(strings.Contains(msg, "quota") || strings.Contains(msg, "limit")) {
		return Classification{Kind: KindQuotaExceeded, RetryAfter: extractRetryDelay(msg)}
	}

	return Classification{Kind: KindUnclassified}
}

func extractRetryDelay(msg string) string {
	if m := retryDelayPattern.FindStringSubmatch(msg); m != nil {
		return m[1]
	}
	return defaultQuotaRetryAfter
}

// UserMessage builds the caller-facing guidance for a capacity failure. It
// distinguishes transient overload from hard quota exhaustion and formats the
// wait duration from the retry hint.
func UserMessage(c Classification) string {
	switch c.Kind {
	case KindOverloaded:
		msg := "The assistant is serving many concurrent users right now and the model is temporarily overloaded."
		if wait := formatWait(c.RetryAfter); wait != "" {
			msg += fmt.Sprintf(" Please wait %s and try again.", wait)
		}
		return msg
	case KindQuotaExceeded:
		msg := "The API rate limit has been reached."
		if wait := formatWait(c.RetryAfter); wait != "" {
			msg += fmt.Sprintf(" Please wait %s before trying again.", wait)
		} else {
			msg += " Please try again in a moment."
		}
		return msg
	default:
		return "The assistant hit an unexpected error. Please try again."
	}
}

func formatWait(retryAfter string) string {
	if retryAfter == "" {
		return ""
	}
	seconds, err := strconv.ParseFloat(retryAfter, 64)
	if err != nil {
		return fmt.Sprintf("about %s seconds", retryAfter)
	}
	total := int(seconds)
	if seconds > float64(total) {
		total++
	}
	if total >= 60 {
		return plural(total/60, "minute") + " " + plural(total%60, "second")
	}
	return plural(total, "second")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
