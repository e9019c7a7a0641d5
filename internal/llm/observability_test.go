package llm

import "testing"

func TestLogRedactedPrompt_NoopWhenLoggingDisabled(t *testing.T) {
	ConfigureLogging(false, 0)
	// Should not panic even with nil context / empty messages.
	LogRedactedPrompt(nil, nil) //nolint:staticcheck // nil ctx exercised deliberately
}

func TestConfigureLogging_StoresEnableAndTruncateSettings(t *testing.T) {
	ConfigureLogging(true, 8)
	defer ConfigureLogging(false, 0)

	ok, trunc := shouldLog()
	if !ok || trunc != 8 {
		t.Fatalf("expected logging enabled with truncate=8, got ok=%v trunc=%d", ok, trunc)
	}
}
