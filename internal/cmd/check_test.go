package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/masahif/supplycheck/internal/checker"
	"github.com/masahif/supplycheck/internal/config"
	"github.com/masahif/supplycheck/internal/notify"
	"github.com/masahif/supplycheck/internal/storage"
)

// supplierProxy serves supplier pages for every proxied request.
func supplierProxy(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/itm/1":
			_, _ = w.Write([]byte(`<html>{"price":"12.50","shippingRate":{},"value":"2.00"}{"maxValue":"7"}</html>`))
		case "/itm/2":
			_, _ = w.Write([]byte(`<div>This listing was ended by the seller.</div>`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testCheckConfig(t *testing.T, proxyAddr string) *config.CheckConfig {
	t.Helper()
	dir := t.TempDir()

	inventory := filepath.Join(dir, "inventory.csv")
	content := "sku,supplier_link,variation,supplier_price,supplier_shipping,supplier_qty,supplier_name,supplier_days\n" +
		"S1,http://supplier.test/itm/1,FALSE,10.00,2.00,0,,\n" +
		"S2,http://supplier.test/itm/2,FALSE,20.00,0.00,3,,\n" +
		"S3,http://supplier.test/itm/3,,5.00,0.00,1,,\n" +
		"S4,,,1.00,0.00,1,,\n"
	if err := os.WriteFile(inventory, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.ShopName = "demo"
	cfg.InventoryPath = inventory
	cfg.CachePath = filepath.Join(dir, "processing", "process.csv")
	cfg.ErrorsPath = filepath.Join(dir, "processing", "errors.csv")
	cfg.DatabasePath = filepath.Join(dir, "db", "supplycheck.db")
	cfg.Proxies = []string{"user:pass@" + proxyAddr}
	cfg.UserAgents = []string{"TestAgent/1.0"}
	cfg.RequestTimeout = 5 * time.Second
	cfg.BatchSize = 2
	return cfg
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestRunCheckWith(t *testing.T) {
	proxy := supplierProxy(t)
	cfg := testCheckConfig(t, proxy.Listener.Addr().String())

	// Stale rows from an earlier run must not survive.
	if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.CachePath, []byte("sku\nOLD\n"), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runCheckWith(context.Background(), &out, cfg, nil); err != nil {
		t.Fatalf("runCheckWith failed: %v", err)
	}

	rows, err := storage.ReadInventory(cfg.CachePath, cfg.Columns)
	if err != nil {
		t.Fatalf("cache unreadable: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("cache has %d rows, want 4", len(rows))
	}
	bySKU := make(map[string]*checker.Row)
	for _, r := range rows {
		bySKU[r.SKU] = r
	}
	if bySKU["OLD"] != nil {
		t.Error("stale cache row survived")
	}

	if r := bySKU["S1"]; r.SupplierPrice != 12.5 || r.SupplierShipping != 2 || r.SupplierQty != 7 {
		t.Errorf("S1 = %+v, want parsed page values", r)
	}
	if r := bySKU["S2"]; r.SupplierName != "{out_of_stock}" || r.SupplierQty != 0 {
		t.Errorf("S2 = %+v, want out of stock", r)
	}
	if r := bySKU["S3"]; r.SupplierName != "{404}" {
		t.Errorf("S3 supplier name = %q, want {404}", r.SupplierName)
	}
	if r := bySKU["S4"]; r.SupplierName != checker.MarkerNoLink {
		t.Errorf("S4 supplier name = %q, want %s", r.SupplierName, checker.MarkerNoLink)
	}

	errs := readCSV(t, cfg.ErrorsPath)
	if len(errs) != 2 || errs[0][0] != "sku" || errs[1][0] != "S2" {
		t.Errorf("errors file = %v", errs)
	}

	report := out.String()
	for _, want := range []string{"Inventory: " + cfg.InventoryPath + " (4 rows)", "All processed: 4", "Back in stock: 1", "Out of stock: 1", "404: 1"} {
		if !strings.Contains(report, want) {
			t.Errorf("output lacks %q:\n%s", want, report)
		}
	}

	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	runID, err := store.LastRunID()
	if err != nil || runID == "" {
		t.Fatalf("LastRunID = %q, %v", runID, err)
	}
	snap, err := store.Report(runID)
	if err != nil {
		t.Fatalf("stored report: %v", err)
	}
	if snap.AllProcessed != 4 {
		t.Errorf("stored AllProcessed = %d, want 4", snap.AllProcessed)
	}
}

func TestRunCheckWithFatalInputs(t *testing.T) {
	proxy := supplierProxy(t)

	t.Run("no proxies", func(t *testing.T) {
		cfg := testCheckConfig(t, proxy.Listener.Addr().String())
		cfg.Proxies = nil
		err := runCheckWith(context.Background(), &bytes.Buffer{}, cfg, nil)
		if !errors.Is(err, checker.ErrNoProxies) {
			t.Errorf("error = %v, want ErrNoProxies", err)
		}
	})

	t.Run("proxy API down", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer api.Close()

		cfg := testCheckConfig(t, proxy.Listener.Addr().String())
		cfg.Proxies = nil
		cfg.ProxyAPI.URL = api.URL + "/api/"
		cfg.ProxyAPI.APIKey = "secret"
		err := runCheckWith(context.Background(), &bytes.Buffer{}, cfg, nil)
		if err == nil || errors.Is(err, checker.ErrNoProxies) {
			t.Fatalf("error = %v, want the source failure rather than an empty pool", err)
		}
		if !strings.Contains(err.Error(), "spaceproxy") || !strings.Contains(err.Error(), "500") {
			t.Errorf("error = %v, want it to name the failing source and status", err)
		}
	})

	t.Run("malformed proxy", func(t *testing.T) {
		cfg := testCheckConfig(t, proxy.Listener.Addr().String())
		cfg.Proxies = []string{"no-credentials-here"}
		err := runCheckWith(context.Background(), &bytes.Buffer{}, cfg, nil)
		if !errors.Is(err, checker.ErrMalformedProxy) {
			t.Errorf("error = %v, want ErrMalformedProxy", err)
		}
	})

	t.Run("inventory without link column", func(t *testing.T) {
		cfg := testCheckConfig(t, proxy.Listener.Addr().String())
		if err := os.WriteFile(cfg.InventoryPath, []byte("sku\nS1\n"), 0644); err != nil {
			t.Fatal(err)
		}
		err := runCheckWith(context.Background(), &bytes.Buffer{}, cfg, nil)
		if !errors.Is(err, storage.ErrMissingHeader) {
			t.Errorf("error = %v, want ErrMissingHeader", err)
		}
	})
}

func TestRunCheckWithPublishesReport(t *testing.T) {
	proxy := supplierProxy(t)
	cfg := testCheckConfig(t, proxy.Listener.Addr().String())
	cfg.DatabasePath = ""

	received := make(chan map[string]any, 1)
	upgrader := websocket.Upgrader{}
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		received <- msg
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"ok":true}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer service.Close()

	client := notify.NewClient("ws"+strings.TrimPrefix(service.URL, "http"), time.Second)
	if err := runCheckWith(context.Background(), &bytes.Buffer{}, cfg, client); err != nil {
		t.Fatalf("runCheckWith failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg["message_type"] != notify.TypeReport || msg["shop_name"] != "demo" {
			t.Errorf("report message = %v", msg)
		}
		if msg["all_processed"] != float64(4) || msg["proxies"] != float64(1) {
			t.Errorf("report counters = %v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("report was not published")
	}
}

func TestProxySources(t *testing.T) {
	cfg := config.DefaultConfig()
	if got := len(proxySources(cfg, nil)); got != 1 {
		t.Errorf("default sources = %d, want only the config list", got)
	}

	cfg.ProxiesFile = "proxies.txt"
	cfg.ProxyAPI.APIKey = "k"
	cfg.Notify.Proxies = true
	client := notify.NewClient("ws://localhost:1", time.Second)

	sources := proxySources(cfg, client)
	var names []string
	for _, s := range sources {
		names = append(names, s.Name())
	}
	want := "config,file:proxies.txt,spaceproxy,notify"
	if strings.Join(names, ",") != want {
		t.Errorf("sources = %v, want %s", names, want)
	}
}
