package emulator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsf/jsondiff"

	"github.com/udovin/cloudctl/internal/config"
	"github.com/udovin/cloudctl/internal/management"
	"github.com/udovin/cloudctl/internal/pkg/logs"
)

const testToken = "test-token"

type testEnv struct {
	tb     testing.TB
	view   *View
	server *httptest.Server
	Client *management.Client
}

func newTestEnv(tb testing.TB) *testEnv {
	db, err := config.DB{
		Options: config.SQLiteOptions{Path: ":memory:"},
	}.Create()
	if err != nil {
		tb.Fatal("Error:", err)
	}
	if err := ApplySchema(context.Background(), db); err != nil {
		tb.Fatal("Error:", err)
	}
	view := NewView(db, testToken)
	view.now = func() time.Time {
		return time.Unix(1700000000, 0)
	}
	srv := NewServer(logs.NewLogger(logs.WithOutput(io.Discard)))
	view.Register(srv.Group(""))
	server := httptest.NewServer(srv)
	return &testEnv{
		tb:     tb,
		view:   view,
		server: server,
		Client: management.NewClient(server.URL, management.WithToken(testToken)),
	}
}

func (e *testEnv) Close() {
	e.server.Close()
	_ = e.view.db.Close()
}

// Check compares JSON representation of value with expected.
func (e *testEnv) Check(value any, expected string) {
	data, err := json.Marshal(value)
	if err != nil {
		e.tb.Fatal("Error:", err)
	}
	options := jsondiff.DefaultConsoleOptions()
	diff, desc := jsondiff.Compare([]byte(expected), data, &options)
	if diff != jsondiff.FullMatch {
		e.tb.Fatalf("Unexpected JSON: %s", desc)
	}
}

func expectStatus(tb testing.TB, expected int, err error) {
	tb.Helper()
	resp, ok := err.(*management.ErrorResponse)
	if !ok {
		tb.Fatalf("Expected error response with status %d, got %v", expected, err)
	}
	if resp.StatusCode() != expected {
		tb.Fatalf("Expected status %d, got %d: %v", expected, resp.StatusCode(), resp)
	}
}

func testCreateClusterForm() management.CreateClusterForm {
	return management.CreateClusterForm{
		Name:                    "analytics",
		Location:                "West US",
		NodeCount:               4,
		HTTPUserName:            "admin",
		HTTPPassword:            "qwerty123456",
		DefaultStorageAccount:   "account",
		DefaultStorageContainer: "data",
	}
}

func TestPing(t *testing.T) {
	e := newTestEnv(t)
	defer e.Close()
	if err := e.Client.Ping(context.Background()); err != nil {
		t.Fatal("Error:", err)
	}
	resp, err := http.Get(e.server.URL + "/health")
	if err != nil {
		t.Fatal("Error:", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Header.Get(echo.HeaderXRequestID) == "" {
		t.Fatal("Expected request id header")
	}
}

func TestClustersScenario(t *testing.T) {
	e := newTestEnv(t)
	defer e.Close()
	ctx := context.Background()
	{
		clusters, err := e.Client.ObserveClusters(ctx)
		if err != nil {
			t.Fatal("Error:", err)
		}
		e.Check(clusters, `{"clusters":[]}`)
	}
	{
		cluster, err := e.Client.CreateCluster(ctx, testCreateClusterForm())
		if err != nil {
			t.Fatal("Error:", err)
		}
		e.Check(cluster, `{
			"name": "analytics",
			"location": "West US",
			"state": "Running",
			"node_count": 4,
			"version": "3.1",
			"connection_url": "https://analytics.cluster.local",
			"http_user_name": "admin",
			"default_storage_account": "account",
			"default_storage_container": "data",
			"create_time": 1700000000
		}`)
	}
	{
		_, err := e.Client.CreateCluster(ctx, testCreateClusterForm())
		expectStatus(t, http.StatusConflict, err)
	}
	{
		cluster, err := e.Client.ObserveCluster(ctx, "analytics")
		if err != nil {
			t.Fatal("Error:", err)
		}
		if cluster.State != management.RunningState || cluster.NodeCount != 4 {
			t.Fatalf("Unexpected cluster: %+v", cluster)
		}
	}
	{
		clusters, err := e.Client.ObserveClusters(ctx)
		if err != nil {
			t.Fatal("Error:", err)
		}
		if len(clusters.Clusters) != 1 {
			t.Fatalf("Expected 1 cluster, got %d", len(clusters.Clusters))
		}
	}
	{
		cluster, err := e.Client.DeleteCluster(ctx, "analytics")
		if err != nil {
			t.Fatal("Error:", err)
		}
		if cluster.Name != "analytics" {
			t.Fatalf("Unexpected cluster: %+v", cluster)
		}
	}
	{
		_, err := e.Client.ObserveCluster(ctx, "analytics")
		expectStatus(t, http.StatusNotFound, err)
		if !management.IsNotFound(err) {
			t.Fatal("Expected not found error")
		}
		_, err = e.Client.DeleteCluster(ctx, "analytics")
		expectStatus(t, http.StatusNotFound, err)
	}
}

func TestCreateClusterInvalidForm(t *testing.T) {
	e := newTestEnv(t)
	defer e.Close()
	form := testCreateClusterForm()
	form.Name = "1cluster"
	form.NodeCount = 0
	form.HTTPPassword = "short"
	_, err := e.Client.CreateCluster(context.Background(), form)
	expectStatus(t, http.StatusBadRequest, err)
	resp := err.(*management.ErrorResponse)
	for _, field := range []string{"name", "node_count", "http_password"} {
		if _, ok := resp.InvalidFields[field]; !ok {
			t.Fatalf("Expected invalid field %q", field)
		}
	}
	expected := "form has invalid fields (invalid fields: http_password, name, node_count)"
	if resp.Error() != expected {
		t.Fatalf("Expected %q, got %q", expected, resp.Error())
	}
}

func TestAddOnsScenario(t *testing.T) {
	e := newTestEnv(t)
	defer e.Close()
	ctx := context.Background()
	form := management.CreateAddOnForm{
		Name:     "TestAddOn",
		Type:     "Search",
		Plan:     "free",
		Location: "West US",
	}
	{
		addon, err := e.Client.CreateAddOn(ctx, form)
		if err != nil {
			t.Fatal("Error:", err)
		}
		e.Check(addon, `{
			"name": "TestAddOn",
			"type": "Search",
			"plan": "free",
			"location": "West US",
			"state": "Running"
		}`)
	}
	{
		_, err := e.Client.CreateAddOn(ctx, form)
		expectStatus(t, http.StatusConflict, err)
	}
	{
		_, err := e.Client.CreateAddOn(ctx, management.CreateAddOnForm{Name: "x"})
		expectStatus(t, http.StatusBadRequest, err)
	}
	{
		addons, err := e.Client.ObserveAddOns(ctx)
		if err != nil {
			t.Fatal("Error:", err)
		}
		if len(addons.AddOns) != 1 || addons.AddOns[0].Name != "TestAddOn" {
			t.Fatalf("Unexpected add-ons: %+v", addons)
		}
	}
	{
		addon, err := e.Client.ObserveAddOn(ctx, "TestAddOn")
		if err != nil {
			t.Fatal("Error:", err)
		}
		if addon.Type != "Search" {
			t.Fatalf("Expected %q, got %q", "Search", addon.Type)
		}
	}
	{
		if _, err := e.Client.DeleteAddOn(ctx, "TestAddOn"); err != nil {
			t.Fatal("Error:", err)
		}
		_, err := e.Client.ObserveAddOn(ctx, "TestAddOn")
		expectStatus(t, http.StatusNotFound, err)
	}
}

func TestRequireToken(t *testing.T) {
	e := newTestEnv(t)
	defer e.Close()
	ctx := context.Background()
	for _, client := range []*management.Client{
		management.NewClient(e.server.URL),
		management.NewClient(e.server.URL, management.WithToken("invalid")),
	} {
		_, err := client.ObserveClusters(ctx)
		expectStatus(t, http.StatusUnauthorized, err)
		if err := client.Ping(ctx); err != nil {
			t.Fatal("Error:", err)
		}
	}
}
