// Package uploader relocates locally-encoded images to a hosted image service.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xhad/inkwell/internal/types"
	"github.com/xhad/inkwell/pkg/logging"
	"golang.org/x/time/rate"
)

// Responses larger than this are cut when attached to an UploadError.
const maxErrorBody = 64 * 1024

type UploaderConfig struct {
	Endpoint     string // e.g. https://api.cloudinary.com/v1_1
	CloudName    string
	UploadPreset string
	Folder       string
	RateLimit    float64 // uploads per second
	Timeout      time.Duration
	Client       *http.Client
	Logger       logrus.FieldLogger
}

type Uploader struct {
	config  UploaderConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  logrus.FieldLogger
}

type uploadRequest struct {
	File         string `json:"file"`
	UploadPreset string `json:"upload_preset"`
	Folder       string `json:"folder,omitempty"`
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

func NewWithConfig(config UploaderConfig) (*Uploader, error) {
	if config.Endpoint == "" {
		config.Endpoint = "https://api.cloudinary.com/v1_1"
	}
	if config.CloudName == "" {
		return nil, fmt.Errorf("cloud name is required")
	}
	if config.UploadPreset == "" {
		return nil, fmt.Errorf("upload preset is required")
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 uploads per second by default
	}

	client := config.Client
	if client == nil {
		// Zero Timeout keeps the platform default.
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Uploader{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logging.OrDefault(config.Logger),
	}, nil
}

func (u *Uploader) uploadURL() string {
	return fmt.Sprintf("%s/%s/image/upload", strings.TrimRight(u.config.Endpoint, "/"), u.config.CloudName)
}

// Upload sends one payload to the image host and returns its secure URL.
// Failures are returned once as *types.UploadError; nothing is retried.
func (u *Uploader) Upload(ctx context.Context, payload string) (string, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return "", &types.UploadError{Err: err}
	}

	body, err := json.Marshal(uploadRequest{
		File:         payload,
		UploadPreset: u.config.UploadPreset,
		Folder:       u.config.Folder,
	})
	if err != nil {
		return "", &types.UploadError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL(), bytes.NewReader(body))
	if err != nil {
		return "", &types.UploadError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", &types.UploadError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &types.UploadError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &types.UploadError{Status: resp.StatusCode, Body: truncate(respBody)}
	}

	var data uploadResponse
	if err := json.Unmarshal(respBody, &data); err != nil {
		return "", &types.UploadError{Status: resp.StatusCode, Body: truncate(respBody), Err: err}
	}
	if data.SecureURL == "" {
		return "", &types.UploadError{Status: resp.StatusCode, Body: truncate(respBody)}
	}

	u.logger.WithFields(logrus.Fields{
		"public_id": data.PublicID,
		"url":       data.SecureURL,
	}).Debug("image uploaded")

	return data.SecureURL, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return string(b)
}
