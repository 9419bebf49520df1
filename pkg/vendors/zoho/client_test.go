package zoho

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeZoho 模拟 Zoho 账号与 Inventory 接口
type fakeZoho struct {
	refreshCalls atomic.Int32
	itemCalls    atomic.Int32
	validToken   string
	refreshError string
	always401    bool
	// itemsBody 非空时替换列表响应
	itemsBody string
	// writeUnauthorizedOnce 首次写请求返回 401
	writeUnauthorizedOnce atomic.Bool

	mu     sync.Mutex
	writes []writeCall
}

type writeCall struct {
	Method string
	Path   string
	Body   map[string]interface{}
	Token  string
}

func (f *fakeZoho) recordedWrites() []writeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]writeCall(nil), f.writes...)
}

// handleWrite 记录写请求并回显 item
func (f *fakeZoho) handleWrite(w http.ResponseWriter, r *http.Request, itemID string) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.writes = append(f.writes, writeCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   body,
		Token:  r.Header.Get("Authorization"),
	})
	f.mu.Unlock()

	if f.writeUnauthorizedOnce.CompareAndSwap(true, false) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":57,"message":"You are not authorized to perform this operation"}`))
		return
	}
	if r.Header.Get("Authorization") != "Zoho-oauthtoken "+f.validToken {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	item := map[string]interface{}{
		"item_id": itemID,
		"name":    body["name"],
		"sku":     body["sku"],
		"rate":    body["rate"],
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    0,
		"message": "success",
		"item":    item,
	})
}

func (f *fakeZoho) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v2/token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		_ = r.ParseForm()
		if f.refreshError != "" {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": f.refreshError})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": f.validToken,
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			f.handleWrite(w, r, "9001")
			return
		}
		f.itemCalls.Add(1)
		if f.always401 || r.Header.Get("Authorization") != "Zoho-oauthtoken "+f.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":57,"message":"You are not authorized to perform this operation"}`))
			return
		}
		if r.URL.Query().Get("organization_id") != "org-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.itemsBody != "" {
			_, _ = w.Write([]byte(f.itemsBody))
			return
		}
		_, _ = w.Write([]byte(`{
			"code": 0,
			"message": "success",
			"items": [
				{"item_id": "1", "name": "Widget", "sku": "ABC123", "rate": 12.5, "stock_on_hand": "7", "last_modified_time": "2026-02-01T10:00:00-0500"},
				{"item_id": "2", "name": "Bad Item", "sku": "", "rate": "", "stock_on_hand": 0}
			],
			"page_context": {"page": 1, "per_page": 2, "has_more_page": true}
		}`))
	})
	mux.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.handleWrite(w, r, strings.TrimPrefix(r.URL.Path, "/items/"))
	})
	mux.HandleFunc("/items/404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":1002,"message":"Item does not exist."}`))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeZoho, store TokenStore, now func() time.Time) *Client {
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	opts := []Option{WithRetry(0, 0)}
	if now != nil {
		opts = append(opts, WithClock(now))
	}
	return NewClient(Config{
		ClientID:       "cid",
		ClientSecret:   "secret",
		RefreshToken:   "refresh-1",
		OrganizationID: "org-1",
		AccountsURL:    srv.URL,
		APIBaseURL:     srv.URL,
		RateLimit:      1000,
	}, store, opts...)
}

func TestGetProducts_TypedDecode(t *testing.T) {
	f := &fakeZoho{validToken: "fresh"}
	c := newTestClient(t, f, &MemoryTokenStore{}, nil)

	page, err := c.GetProducts(context.Background(), 1, 2, ListFilter{})
	require.NoError(t, err)

	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.Equal(t, "ABC123", first.SKU)
	assert.Equal(t, 12.5, first.Rate.Float64)
	assert.Equal(t, 7.0, first.StockOnHand.Float64)
	require.NotNil(t, first.ModifiedAt())

	second := page.Items[1]
	assert.False(t, second.Rate.Valid, "空串价格视为缺失")
	assert.NoError(t, second.Validate())
}

func TestGetProducts_BadItemDoesNotFailPage(t *testing.T) {
	f := &fakeZoho{validToken: "fresh", itemsBody: `{
		"code": 0,
		"message": "success",
		"items": [
			{"item_id": "1", "name": "Widget", "rate": 12.5},
			{"item_id": "2", "name": "Broken", "rate": "N/A"},
			{"item_id": "3", "name": "Gadget", "rate": 1}
		],
		"page_context": {"page": 1, "per_page": 3, "has_more_page": false}
	}`}
	c := newTestClient(t, f, &MemoryTokenStore{}, nil)

	page, err := c.GetProducts(context.Background(), 1, 3, ListFilter{})
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.Equal(t, "1", page.Items[0].ItemID)
	assert.Equal(t, "3", page.Items[1].ItemID)

	require.Len(t, page.Invalid, 1)
	bad := page.Invalid[0]
	assert.Equal(t, "2", bad.ItemID)
	assert.Equal(t, 1, bad.Index)
	assert.True(t, errors.Is(bad.Err, ErrInvalidPayload))
}

func TestRawItemID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"字符串 ID", `{"item_id":"42","rate":"N/A"}`, "42"},
		{"数字 ID", `{"item_id":42}`, "42"},
		{"缺少 ID", `{"name":"x"}`, ""},
		{"非对象", `"oops"`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rawItemID(json.RawMessage(tt.raw)))
		})
	}
}

func TestCreateProduct(t *testing.T) {
	f := &fakeZoho{validToken: "fresh"}
	c := newTestClient(t, f, &MemoryTokenStore{}, nil)

	rate := 19.99
	item, err := c.CreateProduct(context.Background(), &ItemRequest{Name: "Geek Bar Pulse", SKU: "GB-1", Rate: &rate})
	require.NoError(t, err)

	require.NotNil(t, item)
	assert.Equal(t, "9001", item.ItemID)
	assert.Equal(t, "Geek Bar Pulse", item.Name)
	assert.Equal(t, 19.99, item.Rate.Float64)

	writes := f.recordedWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodPost, writes[0].Method)
	assert.Equal(t, "/items", writes[0].Path)
	assert.Equal(t, "GB-1", writes[0].Body["sku"])
	assert.Equal(t, 19.99, writes[0].Body["rate"])
	_, hasBrand := writes[0].Body["brand"]
	assert.False(t, hasBrand, "空字段不应发送")
}

func TestUpdateProduct(t *testing.T) {
	f := &fakeZoho{validToken: "fresh"}
	c := newTestClient(t, f, &MemoryTokenStore{}, nil)

	item, err := c.UpdateProduct(context.Background(), "77", &ItemRequest{Name: "Renamed", Status: "inactive"})
	require.NoError(t, err)

	assert.Equal(t, "77", item.ItemID)
	assert.Equal(t, "Renamed", item.Name)

	writes := f.recordedWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodPut, writes[0].Method)
	assert.Equal(t, "/items/77", writes[0].Path)
	assert.Equal(t, "inactive", writes[0].Body["status"])
}

func TestUpdateProduct_401RefreshesAndResendsBody(t *testing.T) {
	f := &fakeZoho{validToken: "fresh"}
	f.writeUnauthorizedOnce.Store(true)
	c := newTestClient(t, f, &MemoryTokenStore{}, nil)

	item, err := c.UpdateProduct(context.Background(), "77", &ItemRequest{Name: "Renamed", SKU: "R-1"})
	require.NoError(t, err)
	assert.Equal(t, "77", item.ItemID)

	writes := f.recordedWrites()
	require.Len(t, writes, 2, "401 后重发一次")
	for _, w := range writes {
		assert.Equal(t, http.MethodPut, w.Method)
		assert.Equal(t, "R-1", w.Body["sku"], "重试必须携带完整请求体")
	}
	assert.Equal(t, "Zoho-oauthtoken fresh", writes[1].Token)
	// 首次取令牌 + 401 后强制刷新
	assert.Equal(t, int32(2), f.refreshCalls.Load())
}

func TestDo_401RefreshesOnceAndRetries(t *testing.T) {
	f := &fakeZoho{validToken: "fresh"}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &MemoryTokenStore{}
	// 缓存的令牌看似有效，但服务端已吊销
	require.NoError(t, store.Save(context.Background(), &Token{AccessToken: "revoked", RefreshToken: "refresh-1", ExpiresAt: now.Add(time.Hour)}))

	c := newTestClient(t, f, store, func() time.Time { return now })

	_, err := c.GetProducts(context.Background(), 1, 2, ListFilter{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.refreshCalls.Load())
	assert.Equal(t, int32(2), f.itemCalls.Load())

	saved, _ := store.Load(context.Background())
	assert.Equal(t, "fresh", saved.AccessToken)
}

func TestDo_Second401Propagates(t *testing.T) {
	f := &fakeZoho{validToken: "fresh", always401: true}
	c := newTestClient(t, f, &MemoryTokenStore{}, nil)

	err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, IsAuthError(err))
	assert.Equal(t, int32(2), f.itemCalls.Load(), "只重试一次")
}

func TestAccessToken_ExpiryBuffer(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		expiresIn   time.Duration
		wantRefresh int32
	}{
		{name: "剩余 10 分钟不刷新", expiresIn: 10 * time.Minute, wantRefresh: 0},
		{name: "剩余 30 秒需刷新", expiresIn: 30 * time.Second, wantRefresh: 1},
		{name: "已过期需刷新", expiresIn: -time.Minute, wantRefresh: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeZoho{validToken: "fresh"}
			store := &MemoryTokenStore{}
			require.NoError(t, store.Save(context.Background(), &Token{AccessToken: "cached", ExpiresAt: now.Add(tt.expiresIn)}))
			c := newTestClient(t, f, store, func() time.Time { return now })

			_, err := c.AccessToken(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantRefresh, f.refreshCalls.Load())
		})
	}
}

func TestRefreshFailure_MarksInvalid(t *testing.T) {
	f := &fakeZoho{validToken: "fresh", refreshError: "invalid_code"}
	store := &MemoryTokenStore{}
	c := newTestClient(t, f, store, nil)

	_, err := c.GetProducts(context.Background(), 1, 10, ListFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenRefresh)
	assert.Equal(t, "invalid_code", store.Invalid)
	assert.Equal(t, int32(0), f.itemCalls.Load())
}

func TestAPIError_NotFound(t *testing.T) {
	f := &fakeZoho{validToken: "fresh"}
	c := newTestClient(t, f, &MemoryTokenStore{}, nil)

	_, err := c.GetProduct(context.Background(), "404")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 1002, apiErr.Code)
}

func TestItem_Validate(t *testing.T) {
	err := (&Item{SKU: "X"}).Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Contains(t, err.Error(), "item_id")
	assert.Contains(t, err.Error(), "name")
}
