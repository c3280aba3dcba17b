package stepservice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/logging"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/pkg/stepservice"
)

func TestCustomProcessor(t *testing.T) {
	got := make(chan map[string]any, 1)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		got <- body
	}))
	defer target.Close()

	t.Setenv("STEP_AUTH__TOKEN", "in")
	t.Setenv("STEP_WEBHOOK__AUTH_TOKEN", "out")
	t.Chdir(t.TempDir())
	cfg, err := stepservice.LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}

	shout := stepservice.NewTextProcessor("shout", func(_ context.Context, text string, _ *stepservice.TextOptions) (string, error) {
		return strings.ToUpper(text) + "!", nil
	})
	svc, err := stepservice.New(
		stepservice.WithConfig(cfg),
		stepservice.WithLogger(logging.Discard()),
		stepservice.WithProcessor(shout),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	body := `{"step":{"id":"` + uuid.NewString() + `"},"webhook":{"url":"` + target.URL + `"},` +
		`"initial":{"input":{"text":"hi","operation":"shout"}}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/steps", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer in")
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	select {
	case payload := <-got:
		data := payload["outputs"].([]any)[0].(map[string]any)["data"].(map[string]any)
		if data["processed_text"] != "HI!" || data["operation"] != "shout" {
			t.Errorf("unexpected data: %v", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
}
