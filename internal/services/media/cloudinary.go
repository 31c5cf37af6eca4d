package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/thecompanyunltd/nightvibe/internal/config"
)

// CloudinaryHost uploads with an unsigned preset. The client is expected to
// carry the breaker and rate limiter from httpclient.NewGuarded.
type CloudinaryHost struct {
	client *http.Client
	base   string
	preset string
}

func NewCloudinaryHost(cfg config.CloudinaryConfig, client *http.Client) *CloudinaryHost {
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	return &CloudinaryHost{
		client: client,
		base:   base + "/" + url.PathEscape(strings.TrimSpace(cfg.CloudName)),
		preset: strings.TrimSpace(cfg.UploadPreset),
	}
}

type cloudinaryUpload struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type cloudinaryError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Result string `json:"result"`
}

func (h *CloudinaryHost) Upload(ctx context.Context, asset Asset) (Hosted, error) {
	if asset.Body == nil {
		return Hosted{}, ErrValidation
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, h.preset, asset))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/image/upload", pr)
	if err != nil {
		pr.Close()
		return Hosted{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		pr.Close()
		return Hosted{}, fmt.Errorf("post upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return Hosted{}, decodeCloudinaryError(resp)
	}

	var out cloudinaryUpload
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Hosted{}, fmt.Errorf("decode upload response: %w", err)
	}
	if out.SecureURL == "" {
		return Hosted{}, fmt.Errorf("upload response has no secure_url")
	}

	return Hosted{
		URL:     out.SecureURL,
		AssetID: out.PublicID,
		Format:  out.Format,
		Bytes:   out.Bytes,
		Width:   out.Width,
		Height:  out.Height,
	}, nil
}

func writeUploadForm(mw *multipart.Writer, preset string, asset Asset) error {
	if err := mw.WriteField("upload_preset", preset); err != nil {
		return err
	}
	if asset.UserID != "" {
		if err := mw.WriteField("folder", "users/"+asset.UserID+"/photos"); err != nil {
			return err
		}
	}
	name := path.Base(strings.TrimSpace(asset.FileName))
	if name == "." || name == "/" {
		name = "photo"
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, asset.Body); err != nil {
		return err
	}
	return mw.Close()
}

func (h *CloudinaryHost) Destroy(ctx context.Context, assetID string) error {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil
	}

	form := url.Values{"public_id": {assetID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/image/destroy", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post destroy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeCloudinaryError(resp)
	}

	var out cloudinaryError
	if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Result != "" && out.Result != "ok" {
		return fmt.Errorf("destroy %s: %s", assetID, out.Result)
	}
	return nil
}

func decodeCloudinaryError(resp *http.Response) error {
	var body cloudinaryError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		return fmt.Errorf("cloudinary status %d: %s", resp.StatusCode, body.Error.Message)
	}
	return fmt.Errorf("cloudinary status %d", resp.StatusCode)
}
