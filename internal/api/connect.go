package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// Service names.
const (
	SplitServiceName   = "budgetai.v1.SplitService"
	ReceiptServiceName = "budgetai.v1.ReceiptService"
	BudgetServiceName  = "budgetai.v1.BudgetService"
)

// Procedure paths.
const (
	SplitServiceSplitProcedure           = "/" + SplitServiceName + "/Split"
	ReceiptServiceListReceiptsProcedure  = "/" + ReceiptServiceName + "/ListReceipts"
	ReceiptServiceGetReceiptProcedure    = "/" + ReceiptServiceName + "/GetReceipt"
	BudgetServiceGenerateBudgetProcedure = "/" + BudgetServiceName + "/GenerateBudget"
)

const procedurePrefix = "/budgetai.v1."

// MaxRequestBytes caps the size of an RPC request message.
const MaxRequestBytes = 1 << 20

// IsProcedurePath reports whether an URL path belongs to an RPC service.
func IsProcedurePath(path string) bool {
	return strings.HasPrefix(path, procedurePrefix)
}

// SplitServiceHandler is implemented by the split service.
type SplitServiceHandler interface {
	Split(context.Context, *connect.Request[SplitRequest]) (*connect.Response[SplitResponse], error)
}

// ReceiptServiceHandler is implemented by the receipt service.
type ReceiptServiceHandler interface {
	ListReceipts(context.Context, *connect.Request[ListReceiptsRequest]) (*connect.Response[ListReceiptsResponse], error)
	GetReceipt(context.Context, *connect.Request[GetReceiptRequest]) (*connect.Response[GetReceiptResponse], error)
}

// BudgetServiceHandler is implemented by the budget service.
type BudgetServiceHandler interface {
	GenerateBudget(context.Context, *connect.Request[GenerateBudgetRequest]) (*connect.Response[GenerateBudgetResponse], error)
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	base := append(handlerCodecs(), connect.WithReadMaxBytes(MaxRequestBytes))
	return append(base, opts...)
}

// route dispatches on the exact procedure path.
func route(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// NewSplitServiceHandler builds an HTTP handler for the split service and
// returns the path on which to mount it.
func NewSplitServiceHandler(svc SplitServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + SplitServiceName + "/", route(map[string]http.Handler{
		SplitServiceSplitProcedure: connect.NewUnaryHandler(SplitServiceSplitProcedure, svc.Split, opts...),
	})
}

// NewReceiptServiceHandler builds an HTTP handler for the receipt service.
func NewReceiptServiceHandler(svc ReceiptServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + ReceiptServiceName + "/", route(map[string]http.Handler{
		ReceiptServiceListReceiptsProcedure: connect.NewUnaryHandler(ReceiptServiceListReceiptsProcedure, svc.ListReceipts, opts...),
		ReceiptServiceGetReceiptProcedure:   connect.NewUnaryHandler(ReceiptServiceGetReceiptProcedure, svc.GetReceipt, opts...),
	})
}

// NewBudgetServiceHandler builds an HTTP handler for the budget service.
func NewBudgetServiceHandler(svc BudgetServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return "/" + BudgetServiceName + "/", route(map[string]http.Handler{
		BudgetServiceGenerateBudgetProcedure: connect.NewUnaryHandler(BudgetServiceGenerateBudgetProcedure, svc.GenerateBudget, opts...),
	})
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{clientCodec()}, opts...)
}

// SplitServiceClient calls the split service.
type SplitServiceClient struct {
	split *connect.Client[SplitRequest, SplitResponse]
}

// NewSplitServiceClient creates a client for the split service at baseURL.
func NewSplitServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SplitServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &SplitServiceClient{
		split: connect.NewClient[SplitRequest, SplitResponse](httpClient, baseURL+SplitServiceSplitProcedure, clientOptions(opts)...),
	}
}

// Split calls budgetai.v1.SplitService.Split.
func (c *SplitServiceClient) Split(ctx context.Context, req *connect.Request[SplitRequest]) (*connect.Response[SplitResponse], error) {
	return c.split.CallUnary(ctx, req)
}

// ReceiptServiceClient calls the receipt service.
type ReceiptServiceClient struct {
	list *connect.Client[ListReceiptsRequest, ListReceiptsResponse]
	get  *connect.Client[GetReceiptRequest, GetReceiptResponse]
}

// NewReceiptServiceClient creates a client for the receipt service at baseURL.
func NewReceiptServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ReceiptServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &ReceiptServiceClient{
		list: connect.NewClient[ListReceiptsRequest, ListReceiptsResponse](httpClient, baseURL+ReceiptServiceListReceiptsProcedure, opts...),
		get:  connect.NewClient[GetReceiptRequest, GetReceiptResponse](httpClient, baseURL+ReceiptServiceGetReceiptProcedure, opts...),
	}
}

// ListReceipts calls budgetai.v1.ReceiptService.ListReceipts.
func (c *ReceiptServiceClient) ListReceipts(ctx context.Context, req *connect.Request[ListReceiptsRequest]) (*connect.Response[ListReceiptsResponse], error) {
	return c.list.CallUnary(ctx, req)
}

// GetReceipt calls budgetai.v1.ReceiptService.GetReceipt.
func (c *ReceiptServiceClient) GetReceipt(ctx context.Context, req *connect.Request[GetReceiptRequest]) (*connect.Response[GetReceiptResponse], error) {
	return c.get.CallUnary(ctx, req)
}

// BudgetServiceClient calls the budget service.
type BudgetServiceClient struct {
	generate *connect.Client[GenerateBudgetRequest, GenerateBudgetResponse]
}

// NewBudgetServiceClient creates a client for the budget service at baseURL.
func NewBudgetServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BudgetServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &BudgetServiceClient{
		generate: connect.NewClient[GenerateBudgetRequest, GenerateBudgetResponse](httpClient, baseURL+BudgetServiceGenerateBudgetProcedure, clientOptions(opts)...),
	}
}

// GenerateBudget calls budgetai.v1.BudgetService.GenerateBudget.
func (c *BudgetServiceClient) GenerateBudget(ctx context.Context, req *connect.Request[GenerateBudgetRequest]) (*connect.Response[GenerateBudgetResponse], error) {
	return c.generate.CallUnary(ctx, req)
}
