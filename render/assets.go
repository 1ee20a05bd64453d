package render

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/disintegration/imaging"
)

// Asset is a decoded receipt image. Remote assets came from another origin
// and are only painted when the rasterizer allows cross-origin content.
type Asset struct {
	Image  image.Image
	Remote bool
}

// AssetLoader fetches logo and QR images from disk or over http(s). Decoded
// images are cached by reference; failures are not, so a file that appears
// later is picked up by the next render.
type AssetLoader struct {
	Client  *http.Client
	Timeout time.Duration

	mu    sync.Mutex
	cache map[string]Asset
}

func NewAssetLoader(timeout time.Duration) *AssetLoader {
	return &AssetLoader{
		Client:  &http.Client{},
		Timeout: timeout,
		cache:   make(map[string]Asset),
	}
}

// Load returns the image behind ref.
func (l *AssetLoader) Load(ctx context.Context, ref string) (Asset, error) {
	if ref == "" {
		return Asset{}, fmt.Errorf("empty asset reference")
	}

	l.mu.Lock()
	a, ok := l.cache[ref]
	l.mu.Unlock()
	if ok {
		return a, nil
	}

	if isRemote(ref) {
		a, err := l.fetch(ctx, ref)
		if err != nil {
			return Asset{}, err
		}
		l.store(ref, a)
		return a, nil
	}

	img, err := imaging.Open(ref)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to open asset %s: %w", ref, err)
	}
	a = Asset{Image: img}
	l.store(ref, a)
	return a, nil
}

func (l *AssetLoader) fetch(ctx context.Context, url string) (Asset, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to build asset request: %w", err)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to fetch asset %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Asset{}, fmt.Errorf("failed to fetch asset %s: status %d", url, resp.StatusCode)
	}

	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to decode asset %s: %w", url, err)
	}
	return Asset{Image: img, Remote: true}, nil
}

func (l *AssetLoader) store(ref string, a Asset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache == nil {
		l.cache = make(map[string]Asset)
	}
	l.cache[ref] = a
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// GenerateQR encodes payload as a square QR image of the given pixel size.
func GenerateQR(payload string, size int) (image.Image, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR payload: %w", err)
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("failed to scale QR code: %w", err)
	}
	return scaled, nil
}
