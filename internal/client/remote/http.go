package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/chronie/homemoney-sync/internal/client/models"
	"github.com/chronie/homemoney-sync/internal/common"
	"github.com/chronie/homemoney-sync/internal/logging"
	"github.com/sethvargo/go-retry"
)

// entityPaths maps entity types to their REST collection paths.
var entityPaths = map[models.EntityType]string{
	models.EntityExpense: "/api/expenses",
	models.EntityDebt:    "/api/debts",
}

// listPageSize is the page size used when draining the modified-since feed.
const listPageSize = 100

// HTTPClient talks JSON to the HomeMoney backend. Transient failures
// (network, timeout, 5xx) are retried in-call with capped exponential
// backoff; the per-request timeout still bounds the whole attempt chain via
// the caller's context.
type HTTPClient struct {
	baseURL     string
	token       string
	hc          *http.Client
	log         logging.Logger
	maxAttempts uint64
	retryBase   time.Duration
}

type HTTPClientOpts struct {
	BaseURL        string
	Token          string        // bearer token attached to every request, may be empty
	RequestTimeout time.Duration // per-attempt timeout
	Logger         logging.Logger
}

func NewHTTPClient(opts HTTPClientOpts) *HTTPClient {
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:     opts.BaseURL,
		token:       opts.Token,
		hc:          &http.Client{Timeout: timeout},
		log:         log,
		maxAttempts: 2,
		retryBase:   200 * time.Millisecond,
	}
}

func (c *HTTPClient) Entity(t models.EntityType) (EntityClient, error) {
	path, ok := entityPaths[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownEntityType, t)
	}
	return &entityClient{c: c, typ: t, path: path}, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ping", http.MethodGet, c.baseURL+"/api/health", nil)
	return err
}

func (c *HTTPClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

// do performs one logical call, retrying transient failures with backoff.
func (c *HTTPClient) do(ctx context.Context, op, method, url string, body []byte) ([]byte, error) {
	var out []byte

	b := retry.WithMaxRetries(c.maxAttempts, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		data, err := c.once(ctx, op, method, url, body)
		if err != nil {
			if IsTransient(err) {
				c.log.Debug(ctx, "retrying remote call", "op", op, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		out = data
		return nil
	})
	if err != nil {
		var re *Error
		if !errors.As(err, &re) {
			// retry.Do surfaced a bare context error
			err = &Error{Kind: classifyTransport(err), Op: op, Err: err}
		}
		return nil, err
	}
	return out, nil
}

// once performs a single HTTP attempt and classifies any failure.
func (c *HTTPClient) once(ctx context.Context, op, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &Error{Kind: KindClient, Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(common.AuthHeaderName, "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &Error{Kind: classifyTransport(err), Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: classifyStatus(resp.StatusCode), Op: op, Status: resp.StatusCode}
	}
	return data, nil
}

type entityClient struct {
	c    *HTTPClient
	typ  models.EntityType
	path string
}

// apiEnvelope is the backend's single-object response wrapper.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// listEnvelope is the backend's paginated list response.
type listEnvelope struct {
	Data  []json.RawMessage `json:"data"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// wireTime accepts either epoch millis or an RFC 3339 string and normalizes
// to epoch millis.
type wireTime int64

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case nil:
		*t = 0
		return nil
	case float64:
		*t = wireTime(int64(value))
		return nil
	case string:
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", value, err)
		}
		*t = wireTime(parsed.UnixMilli())
		return nil
	default:
		return fmt.Errorf("invalid timestamp value: %v", v)
	}
}

// wireMeta is the envelope subset of a remote record's JSON; the full object
// is kept as the record payload.
type wireMeta struct {
	ID        int64    `json:"id"`
	ClientID  string   `json:"clientId"`
	UpdatedAt wireTime `json:"updatedAt"`
	Deleted   bool     `json:"deleted"`
}

func (e *entityClient) decodeRecord(raw json.RawMessage) (*models.RemoteRecord, error) {
	var m wireMeta
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %s record: %w", e.typ, err)
	}
	return &models.RemoteRecord{
		ServerID:   m.ID,
		EntityType: e.typ,
		ClientID:   m.ClientID,
		UpdatedAt:  int64(m.UpdatedAt),
		Deleted:    m.Deleted,
		Payload:    raw,
	}, nil
}

func (e *entityClient) decodeEnvelope(op string, data []byte) (*models.RemoteRecord, error) {
	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return e.decodeRecord(env.Data)
}

// mergePayload injects envelope fields into the entity payload object.
func mergePayload(payload json.RawMessage, extra map[string]any) ([]byte, error) {
	m := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
	}
	for k, v := range extra {
		m[k] = v
	}
	return json.Marshal(m)
}

func (e *entityClient) Create(ctx context.Context, clientID string, payload json.RawMessage) (*models.RemoteRecord, error) {
	op := "create " + string(e.typ)
	// clientId lets the server dedupe a retried create that already landed
	body, err := mergePayload(payload, map[string]any{"clientId": clientID})
	if err != nil {
		return nil, err
	}
	data, err := e.c.do(ctx, op, http.MethodPost, e.c.baseURL+e.path, body)
	if err != nil {
		return nil, err
	}
	return e.decodeEnvelope(op, data)
}

func (e *entityClient) Update(ctx context.Context, serverID int64, payload json.RawMessage) (*models.RemoteRecord, error) {
	op := "update " + string(e.typ)
	body, err := mergePayload(payload, nil)
	if err != nil {
		return nil, err
	}
	url := e.c.baseURL + e.path + "/" + strconv.FormatInt(serverID, 10)
	data, err := e.c.do(ctx, op, http.MethodPut, url, body)
	if err != nil {
		return nil, err
	}
	return e.decodeEnvelope(op, data)
}

func (e *entityClient) Delete(ctx context.Context, serverID int64) error {
	op := "delete " + string(e.typ)
	url := e.c.baseURL + e.path + "/" + strconv.FormatInt(serverID, 10)
	_, err := e.c.do(ctx, op, http.MethodDelete, url, nil)
	if err != nil {
		var re *Error
		// already gone upstream; the delete is confirmed either way
		if errors.As(err, &re) && re.Status == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

func (e *entityClient) ListModifiedSince(ctx context.Context, since int64) ([]models.RemoteRecord, error) {
	op := "list " + string(e.typ)

	var result []models.RemoteRecord
	page := 1
	for {
		url := fmt.Sprintf("%s%s?since=%d&includeDeleted=1&page=%d&limit=%d",
			e.c.baseURL, e.path, since, page, listPageSize)
		data, err := e.c.do(ctx, op, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		var env listEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
		}
		for _, raw := range env.Data {
			rec, err := e.decodeRecord(raw)
			if err != nil {
				return nil, err
			}
			result = append(result, *rec)
		}

		if len(env.Data) < listPageSize {
			return result, nil
		}
		page++
	}
}
