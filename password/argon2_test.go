package password

import (
	"errors"
	"strings"
	"testing"
)

// fastConfig is the cheapest configuration validate accepts.
func fastConfig() Config {
	return Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newHasher(t *testing.T, cfg Config) *Argon2 {
	t.Helper()
	h, err := NewArgon2(cfg)
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newHasher(t, fastConfig())

	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC prefix: %s", hash)
	}

	if ok, err := h.Verify("secret1", hash); err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	if ok, err := h.Verify("secret2", hash); err != nil || ok {
		t.Fatalf("expected mismatch, got %v %v", ok, err)
	}
}

func TestHashesAreSalted(t *testing.T) {
	h := newHasher(t, fastConfig())
	a, _ := h.Hash("secret1")
	b, _ := h.Hash("secret1")
	if a == b {
		t.Fatal("two hashes of one secret must differ")
	}
}

// A backend that raised its cost must still accept hashes made before.
func TestVerifyUsesParametersFromHash(t *testing.T) {
	old := newHasher(t, fastConfig())
	hash, err := old.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	stronger := fastConfig()
	stronger.Time = 2
	stronger.KeyLength = 16
	if ok, err := newHasher(t, stronger).Verify("secret1", hash); err != nil || !ok {
		t.Fatalf("expected match under new config, got %v %v", ok, err)
	}
}

func TestVerifyAcceptsPaddedBase64(t *testing.T) {
	h := newHasher(t, fastConfig())
	hash, _ := h.Hash("secret1")

	i := strings.LastIndex(hash, "$")
	padded := hash[:i] + "$" + hash[i+1:] + strings.Repeat("=", (4-len(hash[i+1:])%4)%4)
	if ok, err := h.Verify("secret1", padded); err != nil || !ok {
		t.Fatalf("expected padded hash accepted, got %v %v", ok, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newHasher(t, fastConfig())
	cases := map[string]string{
		"empty":        "",
		"bcrypt":       "$2a$10$abcdefghijklmnopqrstuv",
		"argon2i":      "$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"old version":  "$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"weak memory":  "$argon2id$v=19$m=16,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"short salt":   "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"bad params":   "$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"missing part": "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA",
		"empty key":    "$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$",
	}
	for name, hash := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := h.Verify("secret1", hash); !errors.Is(err, ErrMalformedHash) {
				t.Fatalf("expected ErrMalformedHash, got %v", err)
			}
		})
	}
}

func TestSecretLengthLimits(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPasswordBytes = 8
	h := newHasher(t, cfg)

	if _, err := h.Hash(""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
	if _, err := h.Hash("123456789"); !errors.Is(err, ErrSecretTooLong) {
		t.Fatalf("expected ErrSecretTooLong, got %v", err)
	}
	hash, err := h.Hash("12345678")
	if err != nil {
		t.Fatalf("expected secret at the cap accepted, got %v", err)
	}
	if _, err := h.Verify("123456789", hash); !errors.Is(err, ErrSecretTooLong) {
		t.Fatalf("expected Verify to enforce the cap, got %v", err)
	}
}

func TestDefaultMaxPasswordBytesApplied(t *testing.T) {
	h := newHasher(t, fastConfig())
	if _, err := h.Hash(strings.Repeat("a", DefaultMaxPasswordBytes+1)); !errors.Is(err, ErrSecretTooLong) {
		t.Fatalf("expected default cap, got %v", err)
	}
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"memory":      func(c *Config) { c.Memory = 1024 },
		"time":        func(c *Config) { c.Time = 0 },
		"parallelism": func(c *Config) { c.Parallelism = 0 },
		"salt":        func(c *Config) { c.SaltLength = 8 },
		"key":         func(c *Config) { c.KeyLength = 8 },
		"max bytes":   func(c *Config) { c.MaxPasswordBytes = -1 },
	} {
		cfg := fastConfig()
		mutate(&cfg)
		if _, err := NewArgon2(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
