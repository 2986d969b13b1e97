package domain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
)

func TestIdentityQueryHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("runs without any authentication", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.Write([]byte(`{"data":{"vehicle":{"tokenId":12345}}}`))
		}))
		defer server.Close()

		handler := IdentityQueryHandler(dimo.NewIdentity(server.URL, nil))
		result, output, err := handler(ctx, nil, IdentityQueryInput{Query: "query { vehicle }"})
		if err != nil {
			t.Fatalf("handler: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected error result: %+v", result)
		}
		if gotAuth != "" {
			t.Errorf("public queries must not carry a bearer, got %q", gotAuth)
		}
		if !strings.Contains(output.Payload, "12345") {
			t.Errorf("unexpected payload %q", output.Payload)
		}
	})

	t.Run("empty query is rejected", func(t *testing.T) {
		handler := IdentityQueryHandler(dimo.NewIdentity("http://unused", nil))
		if _, _, err := handler(ctx, nil, IdentityQueryInput{}); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestSearchVehiclesHandler(t *testing.T) {
	ctx := context.Background()

	var gotVariables map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotVariables, _ = body["variables"].(map[string]any)
		w.Write([]byte(`{"data":{"vehicles":{"totalCount":1,"nodes":[{"tokenId":12345}]}}}`))
	}))
	defer server.Close()

	handler := SearchVehiclesHandler(dimo.NewIdentity(server.URL, nil))
	_, output, err := handler(ctx, nil, SearchVehiclesInput{Owner: "0xAAA", Limit: 5})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if gotVariables["owner"] != "0xAAA" || gotVariables["first"] != float64(5) {
		t.Errorf("unexpected variables %v", gotVariables)
	}
	if !strings.Contains(output.Payload, "totalCount") {
		t.Errorf("unexpected payload %q", output.Payload)
	}
}
