// Package backend is the sole component that talks to the expense-splitting
// service. It exposes typed calls per endpoint and maps every failure to
// *Error; callers own the user-facing messaging.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"log/slog"

	"github.com/opensplit/splitbot/core/logger"
	"github.com/opensplit/splitbot/internal/expense"
)

const defaultTimeout = 10 * time.Second

// Config holds the externally supplied gateway settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client issues one synchronous request per call. No retries, no cache.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option customises a Client, mainly for tests.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The replacement must
// not retry on its own; every expense POST has to reach the backend exactly
// once per submission.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New validates the configuration and builds a Client with a bounded request
// timeout. The client deliberately uses a plain transport: a transient
// timeout must surface as an error, never as a silent resend.
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Timeout <= 0 {
		c.http.Timeout = timeout
	}
	return c, nil
}

type registerGroupRequest struct {
	Name string `json:"name"`
}

type expenseRequest struct {
	Name      string      `json:"name"`
	Payer     string      `json:"payer"`
	Amount    json.Number `json:"amount"`
	Receivers []string    `json:"receivers"`
}

// RegisterGroup registers a chat as a group on the backend.
func (c *Client) RegisterGroup(ctx context.Context, groupID int64, name string) error {
	endpoint := c.groupURL(groupID)
	_, err := c.do(ctx, http.MethodPut, endpoint, registerGroupRequest{Name: name})
	return err
}

// SubmitExpense posts a completed expense record. The amount travels as a
// JSON number carrying the exact decimal text.
func (c *Client) SubmitExpense(ctx context.Context, groupID int64, rec expense.Record) error {
	receivers := make([]string, 0, len(rec.Receivers))
	for _, r := range rec.Receivers {
		receivers = append(receivers, wireName(r))
	}
	req := expenseRequest{
		Name:      rec.Name,
		Payer:     wireName(rec.Payer),
		Amount:    json.Number(rec.Amount.String()),
		Receivers: receivers,
	}
	_, err := c.do(ctx, http.MethodPost, c.groupURL(groupID)+"/expenses", req)
	return err
}

// GroupBalance fetches the member balances of a group, preserving the order
// of the response payload.
func (c *Client) GroupBalance(ctx context.Context, groupID int64) (BalanceView, error) {
	raw, err := c.do(ctx, http.MethodGet, c.groupURL(groupID)+"/balance", nil)
	if err != nil {
		return nil, err
	}
	return decodeBalance(raw)
}

// UserBalance fetches a user's balance per group they belong to.
func (c *Client) UserBalance(ctx context.Context, username string) (BalanceView, error) {
	endpoint := c.baseURL + "/users/" + url.PathEscape(username) + "/balance"
	raw, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeBalance(raw)
}

// Exchanges fetches the settlement suggestions for a group.
func (c *Client) Exchanges(ctx context.Context, groupID int64) ([]Exchange, error) {
	raw, err := c.do(ctx, http.MethodGet, c.groupURL(groupID)+"/exchanges", nil)
	if err != nil {
		return nil, err
	}
	var list []Exchange
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &Error{Kind: KindTransport, Detail: "decode exchanges: " + err.Error()}
	}
	return list, nil
}

func (c *Client) groupURL(groupID int64) string {
	return c.baseURL + "/groups/" + strconv.FormatInt(groupID, 10)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindTransport, Detail: "marshal request: " + err.Error()}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Detail: "build request: " + err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		logger.Error(ctx, "gateway", "request.fail",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return nil, &Error{Kind: KindTransport, Detail: err.Error()}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		detail := strings.TrimSpace(string(buf))
		logger.Error(ctx, "gateway", "request.status",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.Int("http_code", res.StatusCode),
			slog.String("body", logger.SanitizeLimit(detail, 256)),
			slog.Duration("duration", logger.Took(start)),
		)
		return nil, &Error{Kind: KindStatus, Status: res.StatusCode, Detail: detail}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Detail: "read response: " + err.Error()}
	}
	logger.Debug(ctx, "gateway", "request.ok",
		slog.String("method", method),
		slog.String("endpoint", endpoint),
		slog.Int("http_code", res.StatusCode),
		slog.Duration("duration", logger.Took(start)),
	)
	return buf, nil
}

// wireName is the identity the backend understands: the username when known,
// the numeric Telegram ID otherwise.
func wireName(u expense.UserRef) string {
	if u.Username != "" {
		return u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

// decodeBalance walks the JSON object token by token so that the key order of
// the payload survives into the view.
func decodeBalance(raw []byte) (BalanceView, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, &Error{Kind: KindTransport, Detail: "decode balance: " + err.Error()}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, &Error{Kind: KindTransport, Detail: "decode balance: expected object"}
	}

	var view BalanceView
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, &Error{Kind: KindTransport, Detail: "decode balance key: " + err.Error()}
		}
		key, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, &Error{Kind: KindTransport, Detail: "decode balance value: " + err.Error()}
		}
		var text string
		switch v := valTok.(type) {
		case json.Number:
			text = v.String()
		case string:
			text = v
		default:
			return nil, &Error{Kind: KindTransport, Detail: fmt.Sprintf("decode balance: unexpected value for %q", key)}
		}
		amount, err := decimal.NewFromString(text)
		if err != nil {
			return nil, &Error{Kind: KindTransport, Detail: fmt.Sprintf("decode balance: bad amount for %q: %v", key, err)}
		}
		view = append(view, BalanceEntry{Name: key, Amount: amount})
	}
	if _, err := dec.Token(); err != nil {
		return nil, &Error{Kind: KindTransport, Detail: "decode balance: " + err.Error()}
	}
	return view, nil
}
