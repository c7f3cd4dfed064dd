// Package gateway is the HTTP client for the Amazon Pilot API gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pilotwatch/internal/apierr"
	"github.com/kiranshivaraju/pilotwatch/internal/validate"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
)

const maxResponseBytes = 4 << 20

// ErrEmptyAnalysisID is returned before any request when an analysis id is blank.
var ErrEmptyAnalysisID = errors.New("analysis id is required")

// Credentials supplies the bearer token and is torn down when the gateway answers 401.
type Credentials interface {
	Token() string
	Teardown(ctx context.Context) error
}

// Client is the interface for calling the gateway.
type Client interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Profile(ctx context.Context) (*models.ProfileResponse, error)
	ListAnalysisGroups(ctx context.Context, req models.ListAnalysisGroupsRequest) (*models.ListAnalysisGroupsResponse, error)
	CreateAnalysisGroup(ctx context.Context, req models.CreateAnalysisRequest) (*models.CreateAnalysisResponse, error)
	GetAnalysisResults(ctx context.Context, analysisID string) (*models.AnalysisResults, error)
	GenerateReport(ctx context.Context, analysisID string, req models.GenerateReportRequest) (*models.GenerateReportResponse, error)
	GenerateReportAsync(ctx context.Context, analysisID string, req models.GenerateReportRequest) (*models.GenerateReportAsyncResponse, error)
	GetReportStatus(ctx context.Context, analysisID, taskID string) (*models.ReportStatusResponse, error)
	Health(ctx context.Context) error
}

// HTTPClient implements Client over the gateway's REST API.
type HTTPClient struct {
	baseURL    string
	gatewayURL string
	creds      Credentials
	client     *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a gateway client. creds may be nil for anonymous calls.
func NewHTTPClient(baseURL, gatewayURL string, creds Credentials, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		gatewayURL: gatewayURL,
		creds:      creds,
		client:     &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
}

// WithLogger returns c logging to l.
func (c *HTTPClient) WithLogger(l *slog.Logger) *HTTPClient {
	c.logger = l
	return c
}

func (c *HTTPClient) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := validate.Login(req); err != nil {
		return nil, err
	}
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Profile(ctx context.Context) (*models.ProfileResponse, error) {
	var resp models.ProfileResponse
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/auth/users/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListAnalysisGroups(ctx context.Context, req models.ListAnalysisGroupsRequest) (*models.ListAnalysisGroupsResponse, error) {
	page, limit := req.Page, req.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = 20
	}
	if err := validate.Pagination(page, limit); err != nil {
		return nil, err
	}

	params := url.Values{
		"page":  {strconv.Itoa(page)},
		"limit": {strconv.Itoa(limit)},
	}
	if req.Status != "" {
		params.Set("status", req.Status)
	}

	var resp models.ListAnalysisGroupsResponse
	u := fmt.Sprintf("%s/competitor/analysis?%s", c.baseURL, params.Encode())
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateAnalysisGroup(ctx context.Context, req models.CreateAnalysisRequest) (*models.CreateAnalysisResponse, error) {
	if err := validate.CreateAnalysis(req); err != nil {
		return nil, err
	}
	var resp models.CreateAnalysisResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/competitor/analysis", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetAnalysisResults(ctx context.Context, analysisID string) (*models.AnalysisResults, error) {
	u, err := c.analysisURL(analysisID, "")
	if err != nil {
		return nil, err
	}
	var resp models.AnalysisResults
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GenerateReport(ctx context.Context, analysisID string, req models.GenerateReportRequest) (*models.GenerateReportResponse, error) {
	u, err := c.analysisURL(analysisID, "/generate-report")
	if err != nil {
		return nil, err
	}
	var resp models.GenerateReportResponse
	if err := c.do(ctx, http.MethodPost, u, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GenerateReportAsync(ctx context.Context, analysisID string, req models.GenerateReportRequest) (*models.GenerateReportAsyncResponse, error) {
	u, err := c.analysisURL(analysisID, "/generate-report-async")
	if err != nil {
		return nil, err
	}
	var resp models.GenerateReportAsyncResponse
	if err := c.do(ctx, http.MethodPost, u, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetReportStatus(ctx context.Context, analysisID, taskID string) (*models.ReportStatusResponse, error) {
	u, err := c.analysisURL(analysisID, "/report-status")
	if err != nil {
		return nil, err
	}
	if taskID != "" {
		u += "?" + url.Values{"task_id": {taskID}}.Encode()
	}
	var resp models.ReportStatusResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.gatewayURL+"/health", nil, nil)
}

func (c *HTTPClient) analysisURL(analysisID, suffix string) (string, error) {
	if analysisID == "" {
		return "", ErrEmptyAnalysisID
	}
	return fmt.Sprintf("%s/competitor/analysis/%s%s", c.baseURL, url.PathEscape(analysisID), suffix), nil
}

// do sends one request. Non-2xx answers become *apierr.Error; a 401 also
// tears the credentials down before returning.
func (c *HTTPClient) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq, body != nil)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return apierr.Network(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apierr.Network(err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.evict(ctx, method, httpReq.URL.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := apierr.Decode(resp.StatusCode, data)
		if e.RequestID == "" {
			e.RequestID = httpReq.Header.Get("X-Request-ID")
		}
		return e
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, httpReq.URL.Path, err)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.creds == nil {
		return
	}
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *HTTPClient) evict(ctx context.Context, method, path string) {
	if c.creds == nil {
		return
	}
	c.logger.Warn("gateway rejected credentials, clearing session", "method", method, "path", path)
	if err := c.creds.Teardown(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("session teardown failed", "error", err)
	}
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
