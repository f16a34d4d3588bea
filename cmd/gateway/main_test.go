package main

import (
	"strings"
	"testing"
)

const mainTestPrefix = "cmd/gateway:main_test"

func TestUsage_NonEmpty(t *testing.T) {
	if len(usage) == 0 {
		t.Fatalf("%s - usage string is empty", mainTestPrefix)
	}
}

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "providers", "invoke", "result", "--sync", "--clear", "COMMS_URL", "HTTP_PORT"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestUsage_NoStaleReferences(t *testing.T) {
	for _, word := range []string{"README", "0.0.0.0:8080"} {
		if strings.Contains(usage, word) {
			t.Errorf("%s - usage should not mention %q", mainTestPrefix, word)
		}
	}
}

func TestDecodeResponse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"ok", `{"id":"r","ok":true,"result":{"correlationId":"abc","accepted":true}}`, ""},
		{"error body", `{"id":"r","ok":false,"error":{"code":"INVALID_ARGUMENT","message":"client is required"}}`, "INVALID_ARGUMENT: client is required"},
		{"no error body", `{"id":"r","ok":false}`, "without error details"},
		{"not json", `nope`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := decodeResponse([]byte(tt.data))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("%s - unexpected error: %v", mainTestPrefix, err)
				}
				if m, ok := result.(map[string]interface{}); !ok || m["correlationId"] != "abc" {
					t.Errorf("%s - unexpected result: %v", mainTestPrefix, result)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("%s - expected error containing %q, got %v", mainTestPrefix, tt.wantErr, err)
			}
		})
	}
}

func TestParseInvokeArgs(t *testing.T) {
	req, err := parseInvokeArgs([]string{"storage", "getObject", `{"Bucket":"b","Key":"k"}`, "--sync", "--id=abc", "--region=eu-west-1"})
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", mainTestPrefix, err)
	}
	if req.Client != "storage" || req.Method != "getObject" {
		t.Errorf("%s - expected storage.getObject, got %s.%s", mainTestPrefix, req.Client, req.Method)
	}
	if !req.Sync || req.CorrelationID != "abc" || req.Region != "eu-west-1" {
		t.Errorf("%s - flags not applied: %+v", mainTestPrefix, req)
	}
	if req.Params["Bucket"] != "b" || req.Params["Key"] != "k" {
		t.Errorf("%s - params not decoded: %v", mainTestPrefix, req.Params)
	}
}

func TestParseInvokeArgs_NoParams(t *testing.T) {
	req, err := parseInvokeArgs([]string{"storage", "listBuckets"})
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", mainTestPrefix, err)
	}
	if req.Sync || req.Params != nil {
		t.Errorf("%s - expected async request without params, got %+v", mainTestPrefix, req)
	}
}

func TestParseInvokeArgs_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing method", []string{"storage"}},
		{"too many", []string{"storage", "listBuckets", "{}", "extra"}},
		{"params not object", []string{"storage", "listBuckets", "[1]"}},
		{"params not json", []string{"storage", "listBuckets", "nope"}},
		{"unknown flag", []string{"storage", "listBuckets", "--fast"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseInvokeArgs(tt.args); err == nil {
				t.Errorf("%s - expected error for %v", mainTestPrefix, tt.args)
			}
		})
	}
}

func TestParseResultArgs(t *testing.T) {
	input, err := parseResultArgs([]string{"abc", "--clear"})
	if err != nil {
		t.Fatalf("%s - unexpected error: %v", mainTestPrefix, err)
	}
	if input.CorrelationID != "abc" || !input.Clear {
		t.Errorf("%s - unexpected input: %+v", mainTestPrefix, input)
	}

	for _, args := range [][]string{{}, {"--clear"}, {"a", "b"}, {"a", "--all"}} {
		if _, err := parseResultArgs(args); err == nil {
			t.Errorf("%s - expected error for %v", mainTestPrefix, args)
		}
	}
}
