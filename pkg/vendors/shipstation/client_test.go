package shipstation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrUpdateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "k", user)
		assert.Equal(t, "s", pass)
		assert.Equal(t, "/orders/createorder", r.URL.Path)

		var req OrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "SO-0001", req.OrderNumber)
		if assert.NotNil(t, req.AdvancedOptions) {
			assert.Equal(t, 42, req.AdvancedOptions.StoreID)
		}

		_, _ = w.Write([]byte(`{"orderId": 9001, "orderNumber": "SO-0001", "orderKey": "zoho-1", "orderStatus": "awaiting_shipment"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", APISecret: "s", BaseURL: srv.URL, StoreID: 42})
	resp, err := c.CreateOrUpdateOrder(context.Background(), &OrderRequest{OrderNumber: "SO-0001", OrderKey: "zoho-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(9001), resp.OrderID)
}

func TestListShipments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-03-01", r.URL.Query().Get("shipDateStart"))
		_, _ = w.Write([]byte(`{"shipments":[{"shipmentId":1,"orderId":9001,"orderNumber":"SO-0001","orderKey":"zoho-1","trackingNumber":"1Z999","carrierCode":"ups","shipDate":"2026-03-02","voided":false}],"total":1,"page":1,"pages":1}`))
	}))
	defer srv.Close()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := NewClient(Config{APIKey: "k", APISecret: "s", BaseURL: srv.URL})
	page, err := c.ListShipments(context.Background(), ShipmentFilter{ShipDateStart: &since})
	require.NoError(t, err)

	require.Len(t, page.Shipments, 1)
	assert.False(t, page.HasMore())
	assert.Equal(t, "1Z999", page.Shipments[0].TrackingNumber)
	require.NotNil(t, page.Shipments[0].ShippedAt())
}

func TestDoRequest_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Message":"Authorization has been denied for this request."}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", APISecret: "bad", BaseURL: srv.URL})
	err := c.Ping(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
