package origin

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	// The Origin image server hands back TIFF captures; JPEG and PNG show
	// up for preview frames.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"go.uber.org/zap"
)

// imagePathPrefix is the HTTP path prefix the Origin serves capture files
// under. The file path from a NewImageReady notification is appended to it.
const imagePathPrefix = "/SmartScope-1.0/dev2/"

// maxImageBytes caps a single capture download. Full-frame 16-bit raws from
// the Origin sensor are ~24 MB; anything past this is a protocol error.
const maxImageBytes = 256 << 20

// fetchImage downloads and decodes a capture file reported by the device.
// The download goes over plain HTTP to the same host as the WebSocket
// session.
func (c *Client) fetchImage(filePath string) (image.Image, error) {
	c.mu.Lock()
	host := c.host
	c.mu.Unlock()
	if host == "" {
		return nil, ErrNotConnected
	}

	url := fmt.Sprintf("http://%s%s%s", host, imagePathPrefix, filePath)
	c.logger.Debug("Fetching capture file", zap.String("url", url))

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building image request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("User-Agent", "OriginAlpacaGateway")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image server returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image data: %w", err)
	}

	c.logger.Info("Capture file downloaded",
		zap.String("file", filePath),
		zap.String("format", format),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	return img, nil
}
