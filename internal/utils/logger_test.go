package utils

import (
	"testing"
)

func TestLoggerInit(t *testing.T) {
	// Should not panic
	InitLogger()
	if Log == nil {
		t.Error("Log was not initialized")
	}
}

func TestLoggerField(t *testing.T) {
	f := Field("key", "value")
	if f.Key != "key" {
		t.Errorf("Expected key, got %s", f.Key)
	}
}
