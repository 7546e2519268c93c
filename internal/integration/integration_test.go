//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dbgate/internal/db"
	"dbgate/internal/env"
	"dbgate/internal/platform/httpmw"
	"dbgate/internal/services/query/dispatch"
	"dbgate/internal/services/query/probe"
	"dbgate/internal/services/query/registry"
	"dbgate/internal/services/query/server"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

const schema = `
CREATE SCHEMA yamibuy_im;
CREATE TABLE yamibuy_im.im_item (
	item_number text PRIMARY KEY,
	goods_id    bigint NOT NULL,
	seller_id   bigint NOT NULL
);
INSERT INTO yamibuy_im.im_item VALUES ('A100', 7, 9), ('B200', 8, 9);
`

func TestIntegration_GatewayAgainstPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg := startPostgres(t, ctx)

	pool, err := db.Open(ctx, cfg, db.Options{})
	if err != nil {
		t.Fatalf("Open err=%v", err)
	}
	defer pool.Close()
	if _, err := pool.ExecContext(ctx, schema); err != nil {
		t.Fatalf("apply schema err=%v", err)
	}

	// Every environment points at the same container; only gqc and uat are used.
	cfgs := env.Configs{}
	for _, n := range env.All() {
		c := cfg
		c.Name = n
		cfgs[n] = c
	}
	if err := env.Validate(cfgs); err != nil {
		t.Fatalf("Validate err=%v", err)
	}

	reg := registry.New(cfgs, db.Opener(db.Options{MaxOpenConns: 4}), zap.NewNop())
	defer func() { _ = reg.Close() }()

	gate := dispatch.New(reg, zap.NewNop(), dispatch.Options{Timeout: 10 * time.Second})
	api := server.New(gate, probe.New(reg, 5*time.Second), zap.NewNop())
	h := httpmw.BuildEdgeHandler(zap.NewNop(), httpmw.EdgePolicy{ServiceName: "dbgated-it"}, api.Handler())

	srv := httptest.NewServer(h)
	defer srv.Close()

	// SKU lookup goes through the ?-to-$n rebinding.
	var sku map[string]any
	status := postJSON(t, ctx, srv.URL+"/api/query-sku", `{"sku":"A100"}`, &sku)
	if status != http.StatusOK || sku["success"] != true {
		t.Fatalf("query-sku got %d %v", status, sku)
	}
	data, _ := sku["data"].(map[string]any)
	if data["goods_id"] != float64(7) || data["item_number"] != "A100" {
		t.Fatalf("query-sku data=%v", data)
	}

	var missing map[string]any
	status = postJSON(t, ctx, srv.URL+"/api/query-sku", `{"sku":"ZZZ","environment":"uat"}`, &missing)
	if status != http.StatusOK || missing["success"] != false || missing["message"] != "SKU not found" {
		t.Fatalf("missing sku got %d %v", status, missing)
	}

	var rows map[string]any
	status = postJSON(t, ctx, srv.URL+"/api/query",
		`{"sql":"SELECT item_number FROM yamibuy_im.im_item WHERE seller_id = $1 ORDER BY item_number","params":[9]}`, &rows)
	if status != http.StatusOK {
		t.Fatalf("query got %d %v", status, rows)
	}
	if list, _ := rows["data"].([]any); len(list) != 2 {
		t.Fatalf("query data=%v, want 2 rows", rows["data"])
	}

	var upd map[string]any
	status = postJSON(t, ctx, srv.URL+"/api/query",
		`{"sql":"UPDATE yamibuy_im.im_item SET goods_id = goods_id + 1 WHERE seller_id = $1","params":[9]}`, &upd)
	summary, _ := upd["data"].(map[string]any)
	if status != http.StatusOK || summary["affectedRows"] != float64(2) {
		t.Fatalf("update got %d %v", status, upd)
	}

	var bad map[string]any
	status = postJSON(t, ctx, srv.URL+"/api/query", `{"sql":"SELECT * FROM nope"}`, &bad)
	if status != http.StatusInternalServerError || bad["environment"] != "gqc" {
		t.Fatalf("bad query got %d %v", status, bad)
	}

	var health map[string]any
	status = getJSON(t, ctx, srv.URL+"/api/health/uat", &health)
	if status != http.StatusOK || health["database"] != "Connected" {
		t.Fatalf("health got %d %v", status, health)
	}

	for n, st := range reg.Stats() {
		if st.InUse != 0 {
			t.Fatalf("%s: %d connections still in use", n, st.InUse)
		}
	}
}

func startPostgres(t *testing.T, ctx context.Context) env.Config {
	t.Helper()
	pg, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("items"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres err=%v", err)
	}
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("conn string err=%v", err)
	}
	pc, err := pgx.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn err=%v", err)
	}
	return env.Config{
		Name:     env.GQC,
		Driver:   env.Postgres,
		Host:     pc.Host,
		Port:     int(pc.Port),
		User:     pc.User,
		Password: pc.Password,
		Database: pc.Database,
		TLS:      env.TLSDisable,
	}
}

func postJSON(t *testing.T, ctx context.Context, url, body string, out any) int {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("NewRequest err=%v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return doJSON(t, req, out)
}

func getJSON(t *testing.T, ctx context.Context, url string, out any) int {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest err=%v", err)
	}
	return doJSON(t, req, out)
}

func doJSON(t *testing.T, req *http.Request, out any) int {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s err=%v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body err=%v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatalf("decode %q err=%v", b, err)
	}
	return resp.StatusCode
}
