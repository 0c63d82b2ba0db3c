package contentStore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dandelion-network/taskctl/pkg/types"
	"go.uber.org/zap"
)

const maxDocumentSize = 1 << 20

type IpfsConfig struct {
	// GatewayURL serves reads at {GatewayURL}/ipfs/{cid}.
	GatewayURL string
	// ApiURL is an IPFS HTTP API used for Put. Empty makes the store read-only.
	ApiURL  string
	Timeout time.Duration
}

type IpfsGateway struct {
	logger     *zap.Logger
	httpClient *http.Client
	config     *IpfsConfig
}

func NewIpfsGateway(cfg *IpfsConfig, logger *zap.Logger) (*IpfsGateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("gateway URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &IpfsGateway{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
	}, nil
}

func (g *IpfsGateway) Get(ctx context.Context, ref string) (*types.ContentDocument, error) {
	c, err := ValidateRef(ref)
	if err != nil {
		return nil, err
	}
	url := strings.TrimSuffix(g.config.GatewayURL, "/") + "/ipfs/" + c
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: gateway returned %d for %s", ErrContentUnavailable, resp.StatusCode, c)
	}

	var doc types.ContentDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode content %s: %w", c, err)
	}
	return &doc, nil
}

func (g *IpfsGateway) Put(ctx context.Context, doc *types.ContentDocument) (string, error) {
	if g.config.ApiURL == "" {
		return "", fmt.Errorf("%w: no IPFS API configured", ErrContentUnavailable)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "task.json")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	url := strings.TrimSuffix(g.config.ApiURL, "/") + "/api/v0/add?cid-version=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: add returned %d: %s", ErrContentUnavailable, resp.StatusCode, string(msg))
	}

	var added struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("failed to decode add response: %w", err)
	}
	ref, err := ValidateRef(added.Hash)
	if err != nil {
		return "", err
	}

	g.logger.Sugar().Infow("Published task content", zap.String("ref", ref), zap.Int("bytes", len(data)))
	return ref, nil
}
