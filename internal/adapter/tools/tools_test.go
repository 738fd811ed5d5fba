package tools_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/vitalis-ai/vitalis/internal/adapter/tools"
	"github.com/vitalis-ai/vitalis/internal/port/tool"
)

func testRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	tools.RegisterAll(reg, slog.Default())
	return reg
}

func TestRegisterAll(t *testing.T) {
	reg := testRegistry(t)

	want := []string{
		"commerce_buy",
		"execute_shortcut",
		"get_health_metrics",
		"optimize_calendar",
		"search_wellness_products",
		"send_message",
		"web_search",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("expected %d tools, got %d: %v", len(want), len(got), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("tool %d: expected %s, got %s", i, name, got[i])
		}
	}
}

func TestApprovalRequirements(t *testing.T) {
	reg := testRegistry(t)

	sensitive := map[string]bool{
		"send_message":             true,
		"commerce_buy":             true,
		"execute_shortcut":         true,
		"get_health_metrics":       false,
		"optimize_calendar":        false,
		"search_wellness_products": false,
		"web_search":               false,
	}
	for name, want := range sensitive {
		tl, ok := reg.Get(name)
		if !ok {
			t.Fatalf("tool %s not registered", name)
		}
		if tl.RequiresApproval() != want {
			t.Errorf("%s: RequiresApproval = %v, want %v", name, tl.RequiresApproval(), want)
		}
	}
}

func TestAllToolsPublishParameters(t *testing.T) {
	reg := testRegistry(t)

	for _, name := range reg.Names() {
		tl, _ := reg.Get(name)
		p, ok := tl.(tools.Parameterized)
		if !ok {
			t.Errorf("%s does not publish parameters", name)
			continue
		}
		var schema map[string]any
		if err := json.Unmarshal(p.Parameters(), &schema); err != nil {
			t.Errorf("%s: invalid parameter schema: %v", name, err)
		}
	}
}

func TestSendMessageRequiresBody(t *testing.T) {
	reg := testRegistry(t)
	tl, _ := reg.Get("send_message")

	_, err := tl.Invoke(context.Background(), json.RawMessage(`{"to":"+15550100"}`))
	if err == nil {
		t.Fatal("expected error for missing body")
	}

	out, err := tl.Invoke(context.Background(), json.RawMessage(`{"body":"time to sleep"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var resp struct {
		Status  string `json:"status"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if resp.Status != "sent" || resp.Channel != "sms" {
		t.Errorf("unexpected output: %+v", resp)
	}
}

func TestSearchWellnessProductsFiltersByPrice(t *testing.T) {
	reg := testRegistry(t)
	tl, _ := reg.Get("search_wellness_products")

	out, err := tl.Invoke(context.Background(), json.RawMessage(`{"query":"sleep","max_price":10}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var resp struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	for _, p := range resp.Results {
		if price := p["price_usd"].(float64); price > 10 {
			t.Errorf("result above max_price: %v", p)
		}
	}
}

func TestCommerceBuyDefaultsQuantity(t *testing.T) {
	reg := testRegistry(t)
	tl, _ := reg.Get("commerce_buy")

	out, err := tl.Invoke(context.Background(), json.RawMessage(`{"sku":"WL-1001"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var resp struct {
		Status   string `json:"status"`
		Quantity int    `json:"quantity"`
		OrderID  string `json:"order_id"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if resp.Status != "ordered" || resp.Quantity != 1 || resp.OrderID == "" {
		t.Errorf("unexpected output: %+v", resp)
	}
}

func TestGetHealthMetricsSingleMetric(t *testing.T) {
	reg := testRegistry(t)
	tl, _ := reg.Get("get_health_metrics")

	out, err := tl.Invoke(context.Background(), json.RawMessage(`{"metric":"steps_today"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if len(resp) != 1 {
		t.Errorf("expected single metric, got %v", resp)
	}
}
