package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentcouncil/internal/tlsutil"
)

const defaultSerperURL = "https://google.serper.dev/search"

// SerperConfig Serper 后端配置
type SerperConfig struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// SerperProvider 调用 serper.dev 的 Google 搜索接口
type SerperProvider struct {
	endpoint string
	client   *http.Client
}

func NewSerperProvider(cfg SerperConfig) *SerperProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSerperURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SerperProvider{endpoint: cfg.BaseURL, client: tlsutil.NewClient(cfg.Timeout)}
}

func (s *SerperProvider) Name() string { return "serper" }

type serperOrganic struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Search POST {"q","num"}，以 X-API-KEY 认证，解析 organic[]
func (s *SerperProvider) Search(ctx context.Context, query string, opts WebSearchOptions) ([]WebSearchResult, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	body, err := json.Marshal(map[string]any{"q": query, "num": opts.MaxResults})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper: unexpected status %d", resp.StatusCode)
	}

	var raw struct {
		Organic []serperOrganic `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serper: decode: %w", err)
	}

	out := make([]WebSearchResult, 0, len(raw.Organic))
	for _, o := range raw.Organic {
		if len(out) >= opts.MaxResults {
			break
		}
		if strings.TrimSpace(o.Link) == "" {
			continue
		}
		out = append(out, WebSearchResult{Title: o.Title, Snippet: o.Snippet, URL: o.Link})
	}
	return out, nil
}
