package gridsource

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/AzielCF/az-sheetboard/domains/grid"
)

// Config holds the connection settings for a hosted grid API.
type Config struct {
	BaseURL  string
	APIToken string
	SheetID  string
	Timeout  time.Duration
}

// HTTPSource reads a hosted sheet over its REST API. Extent and cell reads
// are cheap point requests; Rows pages through the data range.
type HTTPSource struct {
	cfg    Config
	client *fasthttp.Client
}

func NewHTTPSource(cfg Config) *HTTPSource {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPSource{
		cfg: cfg,
		client: &fasthttp.Client{
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
	}
}

func (s *HTTPSource) ID() string {
	return s.cfg.SheetID
}

func (s *HTTPSource) url(path string) string {
	return strings.TrimSuffix(s.cfg.BaseURL, "/") + "/sheets/" + s.cfg.SheetID + path
}

func (s *HTTPSource) doJSON(ctx context.Context, url string, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if s.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIToken)
	}

	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("grid request failed: %w", err)
	}

	code := resp.StatusCode()
	if code != fasthttp.StatusOK {
		// Keep the status text in the message: the retry layer classifies
		// failures by matching it.
		return fmt.Errorf("grid request returned %d %s: %s",
			code, fasthttp.StatusMessage(code), firstLine(resp.Body()))
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("grid response decode failed: %w", err)
	}
	return nil
}

func firstLine(body []byte) string {
	s := string(body)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func (s *HTTPSource) Extent(ctx context.Context) (grid.Extent, error) {
	var out grid.Extent
	if err := s.doJSON(ctx, s.url("/extent"), &out); err != nil {
		return grid.Extent{}, err
	}
	return out, nil
}

func (s *HTTPSource) Cell(ctx context.Context, row, col int) (string, error) {
	var out struct {
		Value string `json:"value"`
	}
	url := fmt.Sprintf("%s?row=%d&col=%d", s.url("/cell"), row, col)
	if err := s.doJSON(ctx, url, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}

func (s *HTTPSource) Rows(ctx context.Context, startRow, count int) ([][]string, error) {
	var out struct {
		Rows [][]string `json:"rows"`
	}
	url := fmt.Sprintf("%s?start=%d&count=%d", s.url("/rows"), startRow, count)
	if err := s.doJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}
