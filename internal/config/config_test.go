package config

import "testing"

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "")
	t.Setenv("MAX_UPLOAD_MB", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("REMINDER_LEAD_DAYS", "")
	t.Setenv("NATS_SUBJECT", "")

	cfg := Load()
	if cfg.SimilarityThreshold != 0.5 {
		t.Fatalf("expected default similarity threshold 0.5, got %v", cfg.SimilarityThreshold)
	}
	if cfg.MaxUploadMB != 10 {
		t.Fatalf("expected default upload cap 10MB, got %d", cfg.MaxUploadMB)
	}
	if cfg.StorageBackend != "localfs" {
		t.Fatalf("expected default storage backend localfs, got %q", cfg.StorageBackend)
	}
	if cfg.ReminderLeadDays != 30 {
		t.Fatalf("expected default reminder lead 30 days, got %d", cfg.ReminderLeadDays)
	}
	if cfg.NATSSubject != "documents.uploaded" {
		t.Fatalf("expected default subject documents.uploaded, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "0.72")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("MINIO_BUCKET", "vault-prod")
	t.Setenv("API_RATE_LIMIT_RPS", "25")
	t.Setenv("REMINDERS_ENABLED", "false")

	cfg := Load()
	if cfg.SimilarityThreshold != 0.72 {
		t.Fatalf("expected threshold override, got %v", cfg.SimilarityThreshold)
	}
	if cfg.StorageBackend != "minio" || cfg.MinioBucket != "vault-prod" {
		t.Fatalf("expected minio overrides, got %q/%q", cfg.StorageBackend, cfg.MinioBucket)
	}
	if cfg.APIRateLimitRPS != 25 {
		t.Fatalf("expected rate limit override, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.RemindersEnabled {
		t.Fatalf("expected reminders disabled")
	}
}

func TestLoadFallsBackOnUnparseableValues(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "not-a-number")
	t.Setenv("MAX_UPLOAD_MB", "ten")

	cfg := Load()
	if cfg.SimilarityThreshold != 0.5 {
		t.Fatalf("unparseable float must fall back, got %v", cfg.SimilarityThreshold)
	}
	if cfg.MaxUploadMB != 10 {
		t.Fatalf("unparseable int must fall back, got %d", cfg.MaxUploadMB)
	}
}
