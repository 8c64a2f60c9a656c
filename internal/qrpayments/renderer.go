package qrpayments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
)

// Renderer turns a UPI payload string into a PNG image.
type Renderer interface {
	Render(ctx context.Context, payload string) ([]byte, error)
}

// HTTPRenderer delegates rendering to an external QR image service.
type HTTPRenderer struct {
	baseURL string
	httpc   *http.Client
}

// NewHTTPRenderer builds a renderer against the configured service URL.
func NewHTTPRenderer(baseURL string, timeout time.Duration) (*HTTPRenderer, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("renderer url is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRenderer{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}, nil
}

func (r *HTTPRenderer) Render(ctx context.Context, payload string) ([]byte, error) {
	target := fmt.Sprintf("%s?size=300x300&data=%s", r.baseURL, url.QueryEscape(payload))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build renderer request")
	}

	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call qr renderer")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("qr renderer returned status %d", resp.StatusCode))
	}

	image, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read qr image")
	}
	return image, nil
}
