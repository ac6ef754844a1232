package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/R3E-Network/souschef/internal/app/services/notes"
	"github.com/R3E-Network/souschef/internal/app/storage/memory"
	"github.com/R3E-Network/souschef/internal/config"
	"github.com/R3E-Network/souschef/internal/logging"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = config.DriverMemory
	cfg.Auth.JWTSecret = "test-secret"
	return cfg
}

func TestNewWiresServices(t *testing.T) {
	ctx := context.Background()
	application, err := New(ctx, memoryConfig(), logging.Discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer application.Stop(ctx)

	if application.Remote != nil || application.Syncer != nil || application.Sync != nil {
		t.Fatalf("remote components should be off by default")
	}
	acct, err := application.Accounts.SignUp(ctx, "cook@example.com", "password123", "Cook")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	sub := application.Hub.Subscribe(ctx, acct.ID)
	defer sub.Close()

	if _, err := application.Notes.Create(ctx, acct.ID, notes.Input{Title: "Buy yeast"}); err != nil {
		t.Fatalf("create note: %v", err)
	}
	select {
	case change := <-sub.C():
		if change.Collection != "notes" {
			t.Fatalf("unexpected change %+v", change)
		}
	default:
		t.Fatalf("expected a change on the hub")
	}

	names := application.Services()
	if len(names) == 0 || names[0] != "watch-hub" {
		t.Fatalf("unexpected services %v", names)
	}
}

func TestNewUsesProvidedStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	application, err := New(ctx, memoryConfig(), logging.Discard(), WithStores(store))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if application.Store != store {
		t.Fatalf("expected the provided store to back services")
	}
}

func TestNewOpensAndMigratesSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = filepath.Join(t.TempDir(), "sub", "souschef.db")

	application, err := New(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := application.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := application.Accounts.SignUp(ctx, "cook@example.com", "password123", "Cook"); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := application.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestNewRejectsBadScannerConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.OCR.Provider = config.OCRHTTP
	cfg.OCR.Endpoint = ""
	if _, err := New(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected scanner configuration error")
	}
}

func TestRandomSecretWhenUnset(t *testing.T) {
	cfg := memoryConfig()
	cfg.Auth.JWTSecret = ""
	a := jwtSecret(cfg, logging.Discard())
	b := jwtSecret(cfg, logging.Discard())
	if len(a) != 64 || a == b {
		t.Fatalf("expected distinct random secrets, got %q %q", a, b)
	}
}
