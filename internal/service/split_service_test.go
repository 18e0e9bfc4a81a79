package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/parisedai/budgetai/internal/api"
	"github.com/parisedai/budgetai/internal/budget"
	"github.com/parisedai/budgetai/internal/calculator"
	"github.com/parisedai/budgetai/internal/events"
	"github.com/parisedai/budgetai/internal/metrics"
	"github.com/parisedai/budgetai/internal/middleware"
	"github.com/parisedai/budgetai/internal/money"
	"github.com/parisedai/budgetai/internal/receipt"
	"github.com/parisedai/budgetai/internal/storage/sqlite"
)

// recordingPublisher keeps every published event in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

type testEnv struct {
	server    *httptest.Server
	split     *api.SplitServiceClient
	receipts  *api.ReceiptServiceClient
	budget    *api.BudgetServiceClient
	publisher *recordingPublisher
	metrics   *metrics.Metrics
}

// setupTestServer creates a test server backed by a temporary SQLite database.
func setupTestServer(t *testing.T, planner budget.Planner) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	pub := &recordingPublisher{}
	m := metrics.New()
	interceptors := connect.WithInterceptors(middleware.LoggingInterceptor())

	receiptSvc := NewReceiptService(store, receipt.NewProcessor(receipt.PlaceholderOCR{}), pub, m, 1<<20)

	mux := http.NewServeMux()
	mux.Handle(api.NewSplitServiceHandler(NewSplitService(store, pub, m), interceptors))
	mux.Handle(api.NewReceiptServiceHandler(receiptSvc, interceptors))
	mux.Handle(api.NewBudgetServiceHandler(NewBudgetService(planner, m), interceptors))
	mux.Handle("/api/upload", receiptSvc.UploadHandler())
	mux.Handle("/api/health", HealthHandler())

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{
		server:    server,
		split:     api.NewSplitServiceClient(http.DefaultClient, server.URL),
		receipts:  api.NewReceiptServiceClient(http.DefaultClient, server.URL),
		budget:    api.NewBudgetServiceClient(http.DefaultClient, server.URL),
		publisher: pub,
		metrics:   m,
	}
}

func items(amounts ...string) []calculator.ItemInput {
	out := make([]calculator.ItemInput, len(amounts))
	for i, a := range amounts {
		out[i] = calculator.ItemInput{Amount: money.RawAmount(a)}
	}
	return out
}

func assertSplit(t *testing.T, got calculator.Split, want [][2]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d splits, got %d: %v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Participant != w[0] || got[i].Amount != w[1] {
			t.Errorf("split %d = %s:%s, want %s:%s", i, got[i].Participant, got[i].Amount, w[0], w[1])
		}
	}
}

func TestSplit_EqualSplit(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	resp, err := env.split.Split(context.Background(), connect.NewRequest(&api.SplitRequest{
		Items:  items("60", "40"),
		People: []string{"Alice", "Bob"},
	}))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	assertSplit(t, resp.Msg.Split, [][2]string{{"Alice", "50.00"}, {"Bob", "50.00"}})
	if resp.Msg.Total != 10000 {
		t.Errorf("total = %s, want 100.00", resp.Msg.Total)
	}
	if got := testutil.ToFloat64(env.metrics.SplitsCalculated); got != 1 {
		t.Errorf("splits_calculated_total = %v, want 1", got)
	}
	if n := env.publisher.count(events.TopicSplitCalculated); n != 1 {
		t.Errorf("published %d split events, want 1", n)
	}
}

func TestSplit_EventCarriesItems(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	_, err := env.split.Split(context.Background(), connect.NewRequest(&api.SplitRequest{
		Items: []calculator.ItemInput{
			{Name: " Dinner ", Amount: "30"},
			{Amount: "12.50"},
		},
		People: []string{"Alice", "Bob"},
	}))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	env.publisher.mu.Lock()
	defer env.publisher.mu.Unlock()
	if len(env.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(env.publisher.events))
	}
	ev, ok := env.publisher.events[0].(events.SplitCalculated)
	if !ok {
		t.Fatalf("event is %T, want events.SplitCalculated", env.publisher.events[0])
	}
	want := []events.Item{{Label: "Dinner", Amount: 3000}, {Label: "Item", Amount: 1250}}
	if len(ev.Items) != len(want) {
		t.Fatalf("items = %+v, want %+v", ev.Items, want)
	}
	for i := range want {
		if ev.Items[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, ev.Items[i], want[i])
		}
	}
	if ev.Total != 4250 {
		t.Errorf("total = %s, want 42.50", ev.Total)
	}
}

func TestSplit_RemainderToEarliestParticipants(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	resp, err := env.split.Split(context.Background(), connect.NewRequest(&api.SplitRequest{
		Items:  items("7.00", "3.00"),
		People: []string{"Cara", "Alice", "Bob"},
	}))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	assertSplit(t, resp.Msg.Split, [][2]string{{"Cara", "3.34"}, {"Alice", "3.33"}, {"Bob", "3.33"}})
}

func TestSplit_DuplicatePeopleCollapse(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	resp, err := env.split.Split(context.Background(), connect.NewRequest(&api.SplitRequest{
		Items:  items("10"),
		People: []string{"Alice", " Alice ", "Bob", ""},
	}))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	assertSplit(t, resp.Msg.Split, [][2]string{{"Alice", "5.00"}, {"Bob", "5.00"}})
}

func TestSplit_ValidationErrors(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	tests := []struct {
		name    string
		req     *api.SplitRequest
		message string
		reason  string
	}{
		{
			name:    "no item with an amount",
			req:     &api.SplitRequest{Items: items("0"), People: []string{"Bob"}},
			message: calculator.MsgNoItems,
			reason:  "no_items",
		},
		{
			name:    "no people",
			req:     &api.SplitRequest{Items: items("10"), People: []string{}},
			message: calculator.MsgNoPeople,
			reason:  "no_people",
		},
		{
			name:    "bad amount",
			req:     &api.SplitRequest{Items: items("ten"), People: []string{"Bob"}},
			message: `Invalid amount for item 1: "ten"`,
			reason:  "invalid_amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.split.Split(context.Background(), connect.NewRequest(tt.req))
			if connect.CodeOf(err) != connect.CodeInvalidArgument {
				t.Fatalf("expected InvalidArgument, got %v", err)
			}
			var connectErr *connect.Error
			if !errors.As(err, &connectErr) {
				t.Fatalf("expected connect error, got %T", err)
			}
			if connectErr.Message() != tt.message {
				t.Errorf("message = %q, want %q", connectErr.Message(), tt.message)
			}
			if got := testutil.ToFloat64(env.metrics.SplitRejections.WithLabelValues(tt.reason)); got != 1 {
				t.Errorf("rejections{%s} = %v, want 1", tt.reason, got)
			}
		})
	}

	if n := env.publisher.count(events.TopicSplitCalculated); n != 0 {
		t.Errorf("published %d split events for rejected requests", n)
	}
}

func TestSplit_PlainJSONRequest(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	body := `{"items":[{"name":"Dinner","amount":10}],"people":["A","B","C"]}`
	resp, err := http.Post(env.server.URL+api.SplitServiceSplitProcedure, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}
	if !strings.Contains(string(raw), `"split":{"A":"3.34","B":"3.33","C":"3.33"}`) {
		t.Errorf("unexpected body %s", raw)
	}
}

func TestSplit_RejectsUnknownFields(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	body := `{"items":[{"amount":"10"}],"people":["A"],"weights":[1]}`
	resp, err := http.Post(env.server.URL+api.SplitServiceSplitProcedure, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSplit_UnknownReceipt(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	_, err := env.split.Split(context.Background(), connect.NewRequest(&api.SplitRequest{
		Items:     items("10"),
		People:    []string{"Alice"},
		ReceiptID: "does-not-exist",
	}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func upload(t *testing.T, env *testEnv, filename string, data []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	w.Close()

	resp, err := http.Post(env.server.URL+"/api/upload", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUpload_NoFile(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	resp := upload(t, env, "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "No file provided" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestUpload_UnsupportedFile(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	resp := upload(t, env, "notes.txt", []byte("just some text"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	m := metrics.New()
	svc := NewReceiptService(store, receipt.NewProcessor(receipt.PlaceholderOCR{}), events.Nop{}, m, 1024)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, _ := w.CreateFormFile("file", "big.png")
	part.Write(pngHeader)
	part.Write(bytes.Repeat([]byte{0}, 4096))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	svc.UploadHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if got := testutil.ToFloat64(m.ReceiptsProcessed.WithLabelValues("too_large")); got != 1 {
		t.Errorf("receipts_processed{too_large} = %v, want 1", got)
	}
}

func TestReceiptLifecycle(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})
	ctx := context.Background()

	resp := upload(t, env, "receipt.png", pngHeader)
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, raw)
	}
	var uploaded api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		t.Fatal(err)
	}
	if uploaded.ID == "" {
		t.Fatal("expected receipt ID")
	}
	if uploaded.TotalAmount == nil || *uploaded.TotalAmount != 2857 {
		t.Fatalf("total = %v, want 28.57", uploaded.TotalAmount)
	}
	if n := env.publisher.count(events.TopicReceiptUploaded); n != 1 {
		t.Errorf("published %d upload events, want 1", n)
	}

	_, err := env.split.Split(ctx, connect.NewRequest(&api.SplitRequest{
		Items:     []calculator.ItemInput{{Name: "Groceries", Amount: money.RawAmount(uploaded.TotalAmount.String())}},
		People:    []string{"Bob", "Alice"},
		ReceiptID: uploaded.ID,
	}))
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	got, err := env.receipts.GetReceipt(ctx, connect.NewRequest(&api.GetReceiptRequest{ID: uploaded.ID}))
	if err != nil {
		t.Fatalf("GetReceipt failed: %v", err)
	}
	if got.Msg.Receipt.TotalAmount != 2857 {
		t.Errorf("stored total = %s", got.Msg.Receipt.TotalAmount)
	}
	assertSplit(t, got.Msg.Receipt.SplitBetweenPeople, [][2]string{{"Bob", "14.29"}, {"Alice", "14.28"}})

	list, err := env.receipts.ListReceipts(ctx, connect.NewRequest(&api.ListReceiptsRequest{}))
	if err != nil {
		t.Fatalf("ListReceipts failed: %v", err)
	}
	if len(list.Msg.Receipts) != 1 || list.Msg.Receipts[0].ID != uploaded.ID {
		t.Errorf("unexpected receipts %+v", list.Msg.Receipts)
	}
}

func TestGetReceipt_Errors(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})
	ctx := context.Background()

	_, err := env.receipts.GetReceipt(ctx, connect.NewRequest(&api.GetReceiptRequest{}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("empty id: expected InvalidArgument, got %v", err)
	}

	_, err = env.receipts.GetReceipt(ctx, connect.NewRequest(&api.GetReceiptRequest{ID: "missing"}))
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("missing id: expected NotFound, got %v", err)
	}
}

func TestGenerateBudget_Mock(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	resp, err := env.budget.GenerateBudget(context.Background(), connect.NewRequest(&api.GenerateBudgetRequest{
		Income:        "5000",
		City:          "Austin",
		FinancialGoal: "Save for a house",
	}))
	if err != nil {
		t.Fatalf("GenerateBudget failed: %v", err)
	}

	if !resp.Msg.Success || !resp.Msg.MockMode {
		t.Errorf("success = %v, mockMode = %v", resp.Msg.Success, resp.Msg.MockMode)
	}
	if !strings.Contains(resp.Msg.BudgetPlan, "$5,000") {
		t.Errorf("plan does not mention income:\n%s", resp.Msg.BudgetPlan)
	}
	if resp.Msg.UserInputs.Income != "5000" || resp.Msg.UserInputs.City != "Austin" {
		t.Errorf("unexpected user inputs %+v", resp.Msg.UserInputs)
	}
	if got := testutil.ToFloat64(env.metrics.BudgetPlans.WithLabelValues("mock", "ok")); got != 1 {
		t.Errorf("budget_plans{mock,ok} = %v, want 1", got)
	}
}

func TestGenerateBudget_MissingFields(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	_, err := env.budget.GenerateBudget(context.Background(), connect.NewRequest(&api.GenerateBudgetRequest{
		Income: "5000",
		City:   "Austin",
	}))
	if connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) && connectErr.Message() != budget.MsgMissingFields {
		t.Errorf("message = %q", connectErr.Message())
	}
}

type failingPlanner struct{ err error }

func (p failingPlanner) Plan(context.Context, budget.Input) (string, error) { return "", p.err }
func (failingPlanner) Mock() bool { return false }

func TestGenerateBudget_PlannerErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    connect.Code
		message string
	}{
		{"quota", budget.ErrQuotaExceeded, connect.CodeResourceExhausted, budget.MsgQuotaExceeded},
		{"bad key", budget.ErrInvalidAPIKey, connect.CodeUnauthenticated, budget.MsgInvalidAPIKey},
		{"other", errors.New("connection reset"), connect.CodeInternal, budget.MsgGenericFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t, failingPlanner{err: tt.err})

			_, err := env.budget.GenerateBudget(context.Background(), connect.NewRequest(&api.GenerateBudgetRequest{
				Income:        "4000",
				City:          "Denver",
				FinancialGoal: "Retire early",
			}))
			if connect.CodeOf(err) != tt.code {
				t.Fatalf("expected %v, got %v", tt.code, err)
			}
			var connectErr *connect.Error
			if errors.As(err, &connectErr) && connectErr.Message() != tt.message {
				t.Errorf("message = %q, want %q", connectErr.Message(), tt.message)
			}
			if got := testutil.ToFloat64(env.metrics.BudgetPlans.WithLabelValues("openai", "failed")); got != 1 {
				t.Errorf("budget_plans{openai,failed} = %v, want 1", got)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t, budget.MockPlanner{})

	resp, err := http.Get(env.server.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "OK" || body["timestamp"] == "" {
		t.Errorf("unexpected body %v", body)
	}
}
