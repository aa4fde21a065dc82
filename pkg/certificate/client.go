package certificate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fxtoolworks/licensebot/pkg/config"
	pkgerrors "github.com/fxtoolworks/licensebot/pkg/errors"
	"github.com/fxtoolworks/licensebot/pkg/logger"
)

const expiryDateFormat = "2006-01-02"

var (
	errBaseURLRequired = errors.New("certificate renderer url is required")
	errLoggerRequired  = errors.New("certificate logger is required")
)

// RenderRequest carries the fields stamped onto a license certificate.
type RenderRequest struct {
	LicenseKey string
	Username   string
	Product    string
	Expiry     time.Time
	IsTrial    bool
}

// Client renders license certificates through the external renderer service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewClient initializes the renderer wrapper and validates its configuration.
func NewClient(ctx context.Context, cfg config.DeliveryConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.RendererURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.RendererTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logg,
	}

	logg.Info(ctx, "certificate renderer client initialized")
	return c, nil
}

type renderPayload struct {
	LicenseKey string `json:"license_key"`
	Username   string `json:"username"`
	Product    string `json:"product"`
	Expiry     string `json:"expiry"`
	IsTrial    bool   `json:"is_trial"`
}

type renderResult struct {
	DocumentRef string `json:"document_ref"`
}

// Render asks the renderer service for a certificate document and returns its ref.
func (c *Client) Render(ctx context.Context, req RenderRequest) (string, error) {
	if strings.TrimSpace(req.LicenseKey) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "license key is required")
	}

	payload := renderPayload{
		LicenseKey: req.LicenseKey,
		Username:   req.Username,
		Product:    req.Product,
		Expiry:     req.Expiry.UTC().Format(expiryDateFormat),
		IsTrial:    req.IsTrial,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode render request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build render request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call certificate renderer")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("certificate renderer returned status %d", resp.StatusCode))
	}

	var result renderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode render response")
	}
	if result.DocumentRef == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "certificate renderer returned empty document ref")
	}
	return result.DocumentRef, nil
}
