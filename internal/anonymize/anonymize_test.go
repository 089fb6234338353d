package anonymize

import (
	"regexp"
	"strings"
	"testing"
)

var tokenShape = regexp.MustCompile(`^MASKED_[0-9a-f]{64}$`)

func TestTokenDeterministic(t *testing.T) {
	a := Token("secret", "alice@example.com")
	b := Token("secret", "alice@example.com")
	if a != b {
		t.Errorf("Token not deterministic: %q != %q", a, b)
	}
	if !tokenShape.MatchString(a) {
		t.Errorf("Token shape = %q, want MASKED_<64 hex>", a)
	}
}

func TestTokenVariesWithSecretAndValue(t *testing.T) {
	base := Token("secret", "alice@example.com")
	if Token("other", "alice@example.com") == base {
		t.Error("tokens with different secrets should differ")
	}
	if Token("secret", "bob@example.com") == base {
		t.Error("tokens for different values should differ")
	}
}

func TestEmailsReplacesAllOccurrences(t *testing.T) {
	cfg := Config{SecretKey: "k"}
	in := "contact alice@example.com or alice@example.com again"
	out := Emails(in, cfg, nil)

	if strings.Contains(out, "alice@example.com") {
		t.Errorf("address survived redaction: %q", out)
	}
	tok := Token("k", "alice@example.com")
	if strings.Count(out, tok) != 2 {
		t.Errorf("want 2 tokens in %q", out)
	}
}

func TestEmailsStripsTrailingPunctuation(t *testing.T) {
	cfg := Config{SecretKey: "k"}
	out := Emails("write to alice@example.com.", cfg, nil)

	tok := Token("k", "alice@example.com")
	if out != "write to "+tok+"." {
		t.Errorf("Emails = %q, want trailing period preserved", out)
	}
}

func TestEmailsBlacklistCaseInsensitive(t *testing.T) {
	cfg := Config{SecretKey: "k"}
	in := "support@mycompany.com and alice@example.com"
	out := Emails(in, cfg, []string{"MyCompany"})

	if !strings.Contains(out, "support@mycompany.com") {
		t.Errorf("blacklisted address was redacted: %q", out)
	}
	if strings.Contains(out, "alice@example.com") {
		t.Errorf("non-blacklisted address survived: %q", out)
	}
}

func TestEmailsMinLengthGuard(t *testing.T) {
	cfg := Config{SecretKey: "k", MinTokenLength: 30}
	in := "short a@b.co here"
	if out := Emails(in, cfg, nil); out != in {
		t.Errorf("match below minimum length was redacted: %q", out)
	}
}

func TestEmailsIdempotent(t *testing.T) {
	cfg := Config{SecretKey: "k"}
	once := Emails("mail alice@example.com", cfg, nil)
	twice := Emails(once, cfg, nil)
	if once != twice {
		t.Errorf("second pass changed output: %q != %q", once, twice)
	}
}

func TestEmailsNoMatchUnchanged(t *testing.T) {
	cfg := Config{SecretKey: "k"}
	in := "no addresses here at all"
	if out := Emails(in, cfg, nil); out != in {
		t.Errorf("Emails = %q, want unchanged", out)
	}
}

func TestPhonesValidNumberRedacted(t *testing.T) {
	cfg := Config{SecretKey: "k", Region: "US"}
	out := Phones("call me at +14155552671 today", cfg, nil)

	if strings.Contains(out, "+14155552671") {
		t.Errorf("valid number survived redaction: %q", out)
	}
	if !strings.Contains(out, TokenPrefix) {
		t.Errorf("no token in output: %q", out)
	}
}

func TestPhonesInvalidCandidateKept(t *testing.T) {
	cfg := Config{SecretKey: "k", Region: "US"}
	in := "order number 12345678 shipped"
	if out := Phones(in, cfg, nil); out != in {
		t.Errorf("invalid candidate was redacted: %q", out)
	}
}

func TestPhonesBlacklist(t *testing.T) {
	cfg := Config{SecretKey: "k", Region: "US"}
	in := "hotline +14155552671"
	if out := Phones(in, cfg, []string{"4155552671"}); out != in {
		t.Errorf("blacklisted number was redacted: %q", out)
	}
}

func TestTokenNotRematched(t *testing.T) {
	cfg := Config{SecretKey: "k"}
	tok := Token("k", "alice@example.com")
	if out := Emails(tok, cfg, nil); out != tok {
		t.Errorf("token was re-redacted: %q", out)
	}
}
