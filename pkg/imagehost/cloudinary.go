package imagehost

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const cloudinaryBaseURL = "https://api.cloudinary.com/v1_1"

// Cloudinary talks to the Cloudinary upload REST API.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	BaseURL   string
	HTTP      *http.Client
	now       func() time.Time
}

// NewCloudinary creates a Cloudinary client.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) *Cloudinary {
	return &Cloudinary{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		BaseURL:   cloudinaryBaseURL,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

type uploadResponse struct {
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Result    string `json:"result"`
}

// Upload sends the image as a multipart form and returns its secure URL.
func (c *Cloudinary) Upload(ctx context.Context, filename string, r io.Reader) (*Image, error) {
	params := c.signedParams(map[string]string{"folder": c.Folder})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("cloudinary: write field: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("cloudinary: write file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("cloudinary: close form: %w", err)
	}

	var out uploadResponse
	if err := c.post(ctx, "image/upload", w.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &Image{URL: out.SecureURL, PublicID: out.PublicID}, nil
}

// Delete destroys the asset with publicID.
func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	params := c.signedParams(map[string]string{"public_id": publicID})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	_ = w.Close()

	var out uploadResponse
	if err := c.post(ctx, "image/destroy", w.FormDataContentType(), &buf, &out); err != nil {
		return err
	}
	if out.Result != "" && out.Result != "ok" && out.Result != "not found" {
		return fmt.Errorf("cloudinary: destroy returned %q", out.Result)
	}
	return nil
}

func (c *Cloudinary) post(ctx context.Context, path, contentType string, body io.Reader, out interface{}) error {
	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.BaseURL, "/"), c.CloudName, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("cloudinary: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("cloudinary: request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("cloudinary: %s failed (%d): %s", path, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("cloudinary: decode response: %w", err)
	}
	return nil
}

func (c *Cloudinary) signedParams(extra map[string]string) map[string]string {
	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	for k, v := range extra {
		if v != "" {
			params[k] = v
		}
	}
	params["signature"] = c.sign(params)
	params["api_key"] = c.APIKey
	return params
}

// sign hashes the sorted non-empty params followed by the API secret.
func (c *Cloudinary) sign(params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.APISecret))
	return hex.EncodeToString(sum[:])
}
