package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validConfig = `
Target:
  driver: sqlite3
  dsn: ":memory:"

Watermark:
  path: /var/lib/pull/history.txt
  overlap_minutes: 15

Anonymization:
  secret_key: hunter2
  region: FR

Retrievers:
  - source_name: desk
    type: zendesk_tickets
    enabled: true
    credentials:
      email: agent@example.com
      api_token: tok
    params:
      subdomain: acme
    filter: record.status != "closed"
    post_retrieval_actions:
      - function: anonymize_emails
        apply_to_all: true
        blacklisted_patterns: ["@acme.com"]
        blacklisted_fields: [requester_email]
      - function: anonymize_phone_numbers
        fields: [description]
`

func TestParseConfigStringValid(t *testing.T) {
	result := ParseConfigString(validConfig)
	if !result.IsValid() {
		t.Fatalf("valid config rejected: %v", result.AllErrors())
	}
}

func TestParseConfigStringSyntaxError(t *testing.T) {
	result := ParseConfigString("Target:\n  dsn: [unclosed")
	if len(result.ParseErrors) == 0 {
		t.Fatal("want parse error for broken YAML")
	}
	if result.ParseErrors[0].Type != ErrorTypeSyntax {
		t.Errorf("error type = %q, want syntax", result.ParseErrors[0].Type)
	}
}

func TestParseConfigStringEmpty(t *testing.T) {
	for _, content := range []string{"", "   \n", "# only a comment\n"} {
		result := ParseConfigString(content)
		if result.IsValid() {
			t.Errorf("empty content %q accepted", content)
		}
	}
}

func TestParseConfigStringNonMapping(t *testing.T) {
	result := ParseConfigString("- just\n- a\n- list\n")
	if len(result.ParseErrors) == 0 {
		t.Fatal("want parse error for non-mapping document")
	}
	if result.ParseErrors[0].Type != ErrorTypeFormat {
		t.Errorf("error type = %q, want format", result.ParseErrors[0].Type)
	}
}

func TestParseConfigFileNotFound(t *testing.T) {
	result := ParseConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if len(result.ParseErrors) == 0 {
		t.Fatal("want parse error for missing file")
	}
	if result.ParseErrors[0].Type != ErrorTypeIO {
		t.Errorf("error type = %q, want io", result.ParseErrors[0].Type)
	}
}

func TestParseConfigAttachesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pull.yaml")
	if err := os.WriteFile(path, []byte("Target: {\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := ParseConfig(path)
	if len(result.ParseErrors) == 0 {
		t.Fatal("want parse error")
	}
	if result.ParseErrors[0].Path != path {
		t.Errorf("path = %q, want %q", result.ParseErrors[0].Path, path)
	}
}

func TestValidateConfigMissingRequired(t *testing.T) {
	result := ParseConfigString("Watermark:\n  path: x\n")
	if len(result.ValidationErrors) == 0 {
		t.Fatal("want validation errors for missing Target and Retrievers")
	}
}

func TestValidateConfigRejectsUnknownKeys(t *testing.T) {
	result := ParseConfigString(`
Target:
  dsn: ":memory:"
  flavor: chocolate
Retrievers: []
`)
	if len(result.ValidationErrors) == 0 {
		t.Fatal("want validation error for unknown Target key")
	}
	found := false
	for _, e := range result.ValidationErrors {
		if strings.Contains(e.Path, "Target") {
			found = true
		}
	}
	if !found {
		t.Errorf("no error pointing at Target: %v", result.ValidationErrors)
	}
}

func TestValidateConfigBadDriver(t *testing.T) {
	result := ParseConfigString(`
Target:
  driver: oracle
  dsn: x
Retrievers: []
`)
	if len(result.ValidationErrors) == 0 {
		t.Fatal("want validation error for unsupported driver")
	}
}

func TestConvertAppliesDefaults(t *testing.T) {
	result := ParseConfigString(`
Target:
  dsn: ":memory:"
Retrievers:
  - source_name: desk
    type: jira
`)
	if !result.IsValid() {
		t.Fatalf("config rejected: %v", result.AllErrors())
	}

	cfg, err := Convert(result.Data)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if cfg.Target.Table != DefaultTable {
		t.Errorf("table = %q, want default", cfg.Target.Table)
	}
	if cfg.Watermark.Path != DefaultWatermarkPath {
		t.Errorf("watermark path = %q, want default", cfg.Watermark.Path)
	}
	if cfg.Watermark.OverlapMinutes != DefaultOverlapMinutes {
		t.Errorf("overlap = %d, want %d", cfg.Watermark.OverlapMinutes, DefaultOverlapMinutes)
	}
	if cfg.Watermark.LookbackHours != DefaultLookbackHours {
		t.Errorf("lookback = %d, want %d", cfg.Watermark.LookbackHours, DefaultLookbackHours)
	}
	if cfg.Anonymization.MinTokenLength != DefaultMinTokenLength {
		t.Errorf("min token length = %d, want %d", cfg.Anonymization.MinTokenLength, DefaultMinTokenLength)
	}
	if cfg.Anonymization.Region != DefaultRegion {
		t.Errorf("region = %q, want %q", cfg.Anonymization.Region, DefaultRegion)
	}
	if cfg.Retrievers[0].Enabled {
		t.Error("enabled should default to false when omitted")
	}
}

func TestConvertFullConfig(t *testing.T) {
	result := ParseConfigString(validConfig)
	if !result.IsValid() {
		t.Fatalf("config rejected: %v", result.AllErrors())
	}

	cfg, err := Convert(result.Data)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if cfg.Target.Driver != "sqlite3" || cfg.Target.DSN != ":memory:" {
		t.Errorf("target = %+v", cfg.Target)
	}
	if cfg.Watermark.OverlapMinutes != 15 {
		t.Errorf("overlap = %d, want 15", cfg.Watermark.OverlapMinutes)
	}
	if cfg.Anonymization.Region != "FR" {
		t.Errorf("region = %q, want FR", cfg.Anonymization.Region)
	}

	if len(cfg.Retrievers) != 1 {
		t.Fatalf("retrievers = %d, want 1", len(cfg.Retrievers))
	}
	rc := cfg.Retrievers[0]
	if rc.SourceName != "desk" || rc.Type != "zendesk_tickets" || !rc.Enabled {
		t.Errorf("retriever = %+v", rc)
	}
	if rc.Credentials["email"] != "agent@example.com" {
		t.Errorf("credentials = %v", rc.Credentials)
	}
	if rc.Params["subdomain"] != "acme" {
		t.Errorf("params = %v", rc.Params)
	}
	if rc.Filter == "" {
		t.Error("filter not carried through")
	}

	if len(rc.PostRetrievalActions) != 2 {
		t.Fatalf("actions = %d, want 2", len(rc.PostRetrievalActions))
	}
	emails := rc.PostRetrievalActions[0]
	if emails.Function != "anonymize_emails" || !emails.ApplyToAll {
		t.Errorf("first action = %+v", emails)
	}
	if len(emails.BlacklistedPatterns) != 1 || emails.BlacklistedPatterns[0] != "@acme.com" {
		t.Errorf("blacklisted patterns = %v", emails.BlacklistedPatterns)
	}
	if len(emails.BlacklistedFields) != 1 || emails.BlacklistedFields[0] != "requester_email" {
		t.Errorf("blacklisted fields = %v", emails.BlacklistedFields)
	}
	phones := rc.PostRetrievalActions[1]
	if phones.Function != "anonymize_phone_numbers" || phones.ApplyToAll {
		t.Errorf("second action = %+v", phones)
	}
	if len(phones.Fields) != 1 || phones.Fields[0] != "description" {
		t.Errorf("fields = %v", phones.Fields)
	}
}

func TestConvertMissingDSN(t *testing.T) {
	_, err := Convert(map[string]interface{}{
		"Target":     map[string]interface{}{"driver": "sqlite3"},
		"Retrievers": []interface{}{},
	})
	if err == nil {
		t.Error("want error for missing dsn")
	}
}

func TestConvertMissingRequiredRetrieverFields(t *testing.T) {
	_, err := Convert(map[string]interface{}{
		"Target": map[string]interface{}{"dsn": "x"},
		"Retrievers": []interface{}{
			map[string]interface{}{"type": "jira"},
		},
	})
	if err == nil {
		t.Error("want error for retriever without source_name")
	}
}
