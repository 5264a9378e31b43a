//go:build !integration

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/export"
	"github.com/sells-group/quote-cli/internal/model"
)

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
	require.NotNil(t, serveCmd.Flags().Lookup("data"))
}

func TestRouter_Health(t *testing.T) {
	h := newRouter(newTestEngine(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 2, body["lanes"])
}

func TestRouter_Incoterms(t *testing.T) {
	h := newRouter(newTestEngine(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/incoterms", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out []incotermInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))

	byCode := make(map[string]incotermInfo)
	for _, i := range out {
		byCode[i.Code] = i
	}
	require.Contains(t, byCode, "EXW")
	assert.Equal(t, []model.Leg{1, 2, 3}, byCode["EXW"].Legs)
	assert.Equal(t, model.FlowInland, byCode["DAP"].Flow)
	assert.Empty(t, byCode["DDP"].Legs)
}

func TestRouter_Quotes(t *testing.T) {
	h := newRouter(newTestEngine(t))

	payload := quoteRequest{Rows: []model.ShipmentRow{
		{
			PartNumber:  "PN-1",
			Incoterm:    "FCA",
			Origin:      model.Location{CountryCode: "IN", City: "Mundhwa"},
			Destination: model.Location{CountryCode: "ES", City: "Valencia"},
		},
		{
			PartNumber:  "PN-2",
			Incoterm:    "FOB",
			Origin:      model.Location{CountryCode: "CN", City: "Shanghai"},
			Destination: model.Location{CountryCode: "ES", City: "Valencia"},
		},
	}}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/v1/quotes", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var doc export.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "api", doc.Run.Input)
	assert.Equal(t, 2, doc.Run.Rows)
	require.Len(t, doc.Results, 2)

	first := doc.Results[0]
	assert.Equal(t, 1, first.Row, "rows are numbered when the client omits them")
	assert.Equal(t, "INNSA", first.POL)
	assert.Equal(t, "ESVLC", first.POD)
	require.NotNil(t, first.Leg2.CostEUR)
	assert.InDelta(t, 1850, *first.Leg2.CostEUR, 1e-9)

	second := doc.Results[1]
	assert.Equal(t, 2, second.Row)
	require.NotNil(t, second.Leg2.CostEUR, "an owed leg without a rate is priced at zero, not dropped")
	assert.InDelta(t, 0, *second.Leg2.CostEUR, 1e-9)
	var codes []model.FlagCode
	for _, f := range second.Flags {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, model.FlagMissingRate)
}

func TestRouter_Quotes_BadRequests(t *testing.T) {
	h := newRouter(newTestEngine(t))

	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", "{", http.StatusBadRequest},
		{"no rows", `{"rows":[]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/quotes", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, rr.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	h := newRouter(newTestEngine(t))

	req := httptest.NewRequest(http.MethodOptions, "/v1/quotes", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_NotFound(t *testing.T) {
	h := newRouter(newTestEngine(t))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
