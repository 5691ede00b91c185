package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cloudinary uploads images with signed requests to the Cloudinary REST API.
type Cloudinary struct {
	apiKey     string
	apiSecret  string
	uploadURL  string
	httpClient *http.Client
	now        func() time.Time
}

type cloudinaryUploadResponse struct {
	SecureURL string `json:"secure_url"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewCloudinary parses a cloudinary://<key>:<secret>@<cloud> URL.
func NewCloudinary(rawURL string) (*Cloudinary, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse cloudinary url: %w", err)
	}
	if parsed.Scheme != "cloudinary" {
		return nil, fmt.Errorf("invalid cloudinary scheme")
	}

	apiKey := parsed.User.Username()
	apiSecret, ok := parsed.User.Password()
	if !ok {
		return nil, fmt.Errorf("missing cloudinary api secret")
	}
	cloudName := parsed.Hostname()
	if apiKey == "" || apiSecret == "" || cloudName == "" {
		return nil, fmt.Errorf("invalid cloudinary credentials")
	}

	return &Cloudinary{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		uploadURL:  fmt.Sprintf("https://api.cloudinary.com/v1_1/%s/image/upload", cloudName),
		httpClient: &http.Client{Timeout: 20 * time.Second},
		now:        time.Now,
	}, nil
}

// WithEndpoint points uploads at another base URL.
func (c *Cloudinary) WithEndpoint(uploadURL string, client *http.Client) *Cloudinary {
	c.uploadURL = uploadURL
	if client != nil {
		c.httpClient = client
	}
	return c
}

// UploadImage sends a data URL or remote URL to Cloudinary and returns the
// hosted https address. An empty folder uploads to the account root.
func (c *Cloudinary) UploadImage(ctx context.Context, imageSource, folder string) (string, error) {
	imageSource = strings.TrimSpace(imageSource)
	if imageSource == "" {
		return "", fmt.Errorf("empty image source")
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if folder != "" {
		params["folder"] = folder
	}
	signature := c.sign(params)

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		fields := [][2]string{
			{"file", imageSource},
			{"timestamp", params["timestamp"]},
			{"api_key", c.apiKey},
			{"signature", signature},
		}
		if folder != "" {
			fields = append(fields, [2]string{"folder", folder})
		}
		for _, field := range fields {
			if err := writer.WriteField(field[0], field[1]); err != nil {
				_ = pw.CloseWithError(fmt.Errorf("write %s field: %w", field[0], err))
				return
			}
		}
		if err := writer.Close(); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("close multipart writer: %w", err))
			return
		}
		_ = pw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, pr)
	if err != nil {
		_ = pr.Close()
		return "", fmt.Errorf("build cloudinary upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudinary upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("read cloudinary response: %w", err)
	}

	var parsedResp cloudinaryUploadResponse
	if err := json.Unmarshal(body, &parsedResp); err != nil {
		return "", fmt.Errorf("decode cloudinary response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsedResp.Error != nil && parsedResp.Error.Message != "" {
			return "", fmt.Errorf("cloudinary upload failed: %s", parsedResp.Error.Message)
		}
		return "", fmt.Errorf("cloudinary upload failed with status %d", resp.StatusCode)
	}
	if parsedResp.SecureURL == "" {
		return "", fmt.Errorf("cloudinary response missing secure_url")
	}

	return parsedResp.SecureURL, nil
}

// sign follows Cloudinary's scheme: sorted key=value pairs joined by '&',
// followed by the secret, hashed with SHA-1.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}

	h := sha1.New() // #nosec G401: cloudinary API signature requires SHA-1.
	_, _ = h.Write([]byte(strings.Join(pairs, "&") + c.apiSecret))
	return hex.EncodeToString(h.Sum(nil))
}
