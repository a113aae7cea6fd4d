package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const registryContentType = "application/vnd.schemaregistry.v1+json"

// ErrSubjectNotFound is returned when the registry has no versions for a
// subject.
var ErrSubjectNotFound = errors.New("schema subject not found")

// RegistryError is a non-2xx answer from the Schema Registry. Code is the
// registry's error_code when the body carried one.
type RegistryError struct {
	Status  int
	Code    int
	Message string
}

func (e *RegistryError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("schema registry: status %d, error_code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("schema registry: status %d: %s", e.Status, e.Message)
}

// RegistryOption configures optional behaviour for the SchemaRegistryClient.
type RegistryOption func(*SchemaRegistryClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) RegistryOption {
	return func(c *SchemaRegistryClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// SchemaRegistryClient resolves the JSON Schema IDs stamped on health
// events. IDs are cached per subject for the life of the client.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client

	mu  sync.Mutex
	ids map[string]int
}

// NewSchemaRegistryClient returns a client for baseURL with a ten second
// request timeout.
func NewSchemaRegistryClient(baseURL string, opts ...RegistryOption) *SchemaRegistryClient {
	c := &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ids:        make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnsureSchema returns the ID of the latest schema under subject. Only a
// missing subject triggers registration of schema; other failures are
// returned as is.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	if id, ok := c.cached(subject); ok {
		return id, nil
	}

	id, err := c.latestID(ctx, subject)
	if errors.Is(err, ErrSubjectNotFound) {
		id, err = c.registerSchema(ctx, subject, schema)
	}
	if err != nil {
		return 0, fmt.Errorf("ensure schema %s: %w", subject, err)
	}

	c.mu.Lock()
	c.ids[subject] = id
	c.mu.Unlock()
	return id, nil
}

func (c *SchemaRegistryClient) cached(subject string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[subject]
	return id, ok
}

func (c *SchemaRegistryClient) latestID(ctx context.Context, subject string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.subjectURL(subject, "versions", "latest"), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", registryContentType)
	return c.doForID(req)
}

func (c *SchemaRegistryClient) registerSchema(ctx context.Context, subject string, schema string) (int, error) {
	body, err := json.Marshal(struct {
		SchemaType string `json:"schemaType"`
		Schema     string `json:"schema"`
	}{SchemaType: "JSON", Schema: schema})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.subjectURL(subject, "versions"), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", registryContentType)
	return c.doForID(req)
}

func (c *SchemaRegistryClient) subjectURL(subject string, parts ...string) string {
	return c.baseURL + "/subjects/" + url.PathEscape(subject) + "/" + strings.Join(parts, "/")
}

// doForID sends req and decodes the schema id from a 2xx answer.
func (c *SchemaRegistryClient) doForID(req *http.Request) (int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && req.Method == http.MethodGet {
		return 0, ErrSubjectNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, decodeRegistryError(resp)
	}

	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode schema registry response: %w", err)
	}
	if payload.ID <= 0 {
		return 0, fmt.Errorf("schema registry returned no schema id")
	}
	return payload.ID, nil
}

func decodeRegistryError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	regErr := &RegistryError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}

	var payload struct {
		ErrorCode int    `json:"error_code"`
		Message   string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		regErr.Code = payload.ErrorCode
		if payload.Message != "" {
			regErr.Message = payload.Message
		}
	}
	return regErr
}
