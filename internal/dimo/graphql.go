// Package dimo contains thin clients for the vehicle network's upstream
// APIs: the public identity GraphQL endpoint, the authenticated telemetry
// GraphQL endpoint, the devices REST endpoint, and the auth/token-exchange
// endpoints that back the credential core.
package dimo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/timeouts"
)

// upstreamRate bounds outbound calls per endpoint so a chatty assistant
// cannot trip the network's rate limits.
var upstreamRate = rate.Limit(10)

const upstreamBurst = 20

// newHTTPClient builds the instrumented HTTP client shared by all upstream
// callers.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   timeouts.UpstreamCall,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// GraphQLError is an application-level error returned by an upstream
// GraphQL API. Only the message is interpreted; everything else in the
// payload passes through untouched.
type GraphQLError struct {
	Message string `json:"message"`
}

// GraphQLResponse is the generic envelope for upstream GraphQL responses.
// Data is kept as a raw JSON tree; the bridge never interprets payload
// contents beyond top-level errors.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLClient posts queries to a single GraphQL endpoint.
type GraphQLClient struct {
	endpoint string
	headers  map[string]string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewGraphQLClient creates a client for the given endpoint. The extra
// headers are attached to every request.
func NewGraphQLClient(endpoint string, headers map[string]string) *GraphQLClient {
	return &GraphQLClient{
		endpoint: endpoint,
		headers:  headers,
		http:     newHTTPClient(),
		limiter:  rate.NewLimiter(upstreamRate, upstreamBurst),
	}
}

// Query executes a GraphQL query. bearer may be empty for public endpoints.
func (c *GraphQLClient) Query(ctx context.Context, query string, variables map[string]any, bearer string) (*GraphQLResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUpstreamTransport, fmt.Sprintf("call %s", c.endpoint), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUpstreamTransport, "read response body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(errors.CodeUpstreamTransport,
			fmt.Sprintf("%s returned %s: %s", c.endpoint, resp.Status, string(raw)))
	}

	var envelope GraphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Wrap(errors.CodeUpstreamTransport,
			fmt.Sprintf("malformed response from %s: %s", c.endpoint, string(raw)), err)
	}
	return &envelope, nil
}

// introspectionQuery is the standard GraphQL schema introspection document.
const introspectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    types {
      kind
      name
      description
      fields(includeDeprecated: false) {
        name
        description
        args { name type { ...TypeRef } }
        type { ...TypeRef }
      }
      inputFields { name type { ...TypeRef } }
      enumValues(includeDeprecated: false) { name description }
    }
  }
}
fragment TypeRef on __Type {
  kind
  name
  ofType { kind name ofType { kind name ofType { kind name } } }
}`

// Schema runs the standard introspection query against the endpoint.
func (c *GraphQLClient) Schema(ctx context.Context, bearer string) (*GraphQLResponse, error) {
	return c.Query(ctx, introspectionQuery, nil, bearer)
}
