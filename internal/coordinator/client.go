package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	reportErrors "github.com/bardlex/guardreport/pkg/errors"
	"github.com/bardlex/guardreport/pkg/log"
)

// Coordinator JSON-RPC methods
const (
	MethodGetRequest          = "getrequest"
	MethodGetRequests         = "getrequests"
	MethodGetRequestResponse  = "getrequestresponse"
	MethodGetRequestResponses = "getrequestresponses"
)

// maxResponseSize bounds how much of a coordinator reply is read
const maxResponseSize = 32 << 20

// Client talks JSON-RPC 2.0 over HTTP POST to a coordinator. Every call is
// made once; failures are returned to the caller as they are.
type Client struct {
	endpoint   string
	host       string
	username   string
	password   string
	httpClient *http.Client
	logger     *log.Logger
	nextID     int
}

// NewClient creates a coordinator client. Credentials embedded in rawURL are
// sent as HTTP basic auth and stripped from the request URL.
func NewClient(rawURL string, timeout time.Duration, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeConfig, "coordinator_client_creation",
			"invalid coordinator URL")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, reportErrors.New(reportErrors.ErrorTypeConfig, "coordinator_client_creation",
			"coordinator URL must be an absolute http(s) URL")
	}

	c := &Client{
		host:       u.Host,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.WithComponent("coordinator"),
	}
	if u.User != nil {
		c.username = u.User.Username()
		c.password, _ = u.User.Password()
		u.User = nil
	}
	c.endpoint = u.String()

	return c, nil
}

// GetRequest fetches a request and its bids by request txid.
func (c *Client) GetRequest(ctx context.Context, txid string) (*RequestResult, error) {
	raw, err := c.Call(ctx, MethodGetRequest, map[string]string{"txid": txid})
	if err != nil {
		return nil, err
	}

	var result RequestResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeMalformed, MethodGetRequest,
			"unexpected request result shape").
			WithContext("txid", txid)
	}

	return &result, nil
}

// GetRequests fetches one page of the coordinator's request list.
func (c *Client) GetRequests(ctx context.Context, page int) (*RequestsPage, error) {
	raw, err := c.Call(ctx, MethodGetRequests, map[string]int{"page": page})
	if err != nil {
		return nil, err
	}

	var result RequestsPage
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeMalformed, MethodGetRequests,
			"unexpected requests result shape").
			WithContext("page", page)
	}

	return &result, nil
}

// GetResponses fetches the challenge responses recorded for a request.
// The result shape depends on method, so it is returned undecoded.
func (c *Client) GetResponses(ctx context.Context, method, txid string) (json.RawMessage, error) {
	return c.Call(ctx, method, map[string]string{"txid": txid})
}

// Call performs a JSON-RPC call. The coordinator encodes every result as a
// JSON string holding a JSON document; Call returns that inner document.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.nextID++
	body, err := json.Marshal(RPCRequest{
		JSONRPC: "2.0",
		ID:      c.nextID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeInternal, method,
			"failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeInternal, method,
			"failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.logger.LogRPCCall(c.host, method)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeTransport, method,
			"coordinator unreachable").
			WithContext("host", c.host)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeTransport, method,
			"failed to read coordinator reply").
			WithContext("host", c.host)
	}
	c.logger.LogDuration(method, time.Since(start).Nanoseconds())

	var envelope RPCResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, reportErrors.New(reportErrors.ErrorTypeTransport, method,
				fmt.Sprintf("coordinator returned HTTP %d", resp.StatusCode)).
				WithContext("host", c.host).
				WithContext("status", resp.StatusCode)
		}
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeMalformed, method,
			"reply is not a JSON-RPC envelope")
	}

	if envelope.Error != nil {
		return nil, reportErrors.Wrap(envelope.Error, reportErrors.ErrorTypeRPC, method,
			envelope.Error.Message).
			WithContext("code", envelope.Error.Code)
	}

	var inner string
	if err := json.Unmarshal(envelope.Result, &inner); err != nil {
		return nil, reportErrors.Wrap(err, reportErrors.ErrorTypeMalformed, method,
			"result is not a JSON string")
	}
	if !json.Valid([]byte(inner)) {
		return nil, reportErrors.New(reportErrors.ErrorTypeMalformed, method,
			"result string does not hold a JSON document")
	}

	return json.RawMessage(inner), nil
}
