//go:build integration && postgres

package httpapi

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	app "github.com/R3E-Network/souschef/internal/app"
	"github.com/R3E-Network/souschef/internal/app/domain/recipe"
	"github.com/R3E-Network/souschef/internal/config"
	"github.com/R3E-Network/souschef/internal/logging"
)

// Data written through one application must survive a restart against the
// same Postgres database.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration")
	}

	cfg := config.Default()
	cfg.Database.Driver = config.DriverPostgres
	cfg.Database.DSN = dsn
	cfg.Database.AutoMigrate = true
	cfg.Auth.JWTSecret = "integration-secret"
	cfg.Server.RateLimit = 0

	ctx := context.Background()
	boot := func() http.Handler {
		application, err := app.New(ctx, cfg, logging.Discard())
		if err != nil {
			t.Fatalf("new application: %v", err)
		}
		if err := application.Start(ctx); err != nil {
			t.Fatalf("start application: %v", err)
		}
		t.Cleanup(func() { _ = application.Stop(context.Background()) })
		return NewHandler(application)
	}

	first := boot()
	session := signUp(t, first, "pg-"+uuid.NewString()[:8]+"@example.com")
	var created recipe.Recipe
	do(t, first, http.MethodPost, "/recipes", session.Token, map[string]any{"name": "Soup", "servings": 4}, http.StatusCreated, &created)
	do(t, first, http.MethodPost, "/recipes/"+created.ID+"/ingredients", session.Token,
		map[string]any{"name": "Carrot", "quantity": "3"}, http.StatusCreated, nil)

	second := boot()
	var got recipe.Recipe
	do(t, second, http.MethodGet, "/recipes/"+created.ID, session.Token, nil, http.StatusOK, &got)
	if got.Name != "Soup" || got.Servings != 4 {
		t.Fatalf("unexpected recipe after restart %+v", got)
	}
	var ings []recipe.Ingredient
	do(t, second, http.MethodGet, "/recipes/"+created.ID+"/ingredients", session.Token, nil, http.StatusOK, &ings)
	if len(ings) != 1 || ings[0].Name != "Carrot" {
		t.Fatalf("unexpected ingredients after restart %+v", ings)
	}

	do(t, second, http.MethodDelete, "/me", session.Token, nil, http.StatusNoContent, nil)
}
