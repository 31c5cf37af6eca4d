package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thecompanyunltd/nightvibe/internal/config"
)

func TestCloudinaryUploadAndDestroy(t *testing.T) {
	var destroyed string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1_1/demo/image/upload":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			if got := r.FormValue("upload_preset"); got != "nv" {
				t.Errorf("unexpected preset %q", got)
			}
			f, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("missing file: %v", err)
			} else {
				body, _ := io.ReadAll(f)
				if string(body) != "image-bytes" {
					t.Errorf("unexpected body %q", body)
				}
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"secure_url":"https://res.local/x.jpg","public_id":"users/u1/photos/x","format":"jpg","bytes":11,"width":640,"height":480}`)
		case "/v1_1/demo/image/destroy":
			_ = r.ParseForm()
			destroyed = r.FormValue("public_id")
			_, _ = io.WriteString(w, `{"result":"ok"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	host := NewCloudinaryHost(config.CloudinaryConfig{
		CloudName:    "demo",
		UploadPreset: "nv",
		APIBase:      srv.URL + "/v1_1/",
	}, srv.Client())

	got, err := host.Upload(context.Background(), Asset{
		UserID:   "u1",
		FileName: "x.jpg",
		Body:     strings.NewReader("image-bytes"),
		Size:     11,
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if got.URL != "https://res.local/x.jpg" || got.AssetID != "users/u1/photos/x" || got.Width != 640 || got.Height != 480 {
		t.Fatalf("unexpected hosted photo: %+v", got)
	}

	if err := host.Destroy(context.Background(), got.AssetID); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if destroyed != "users/u1/photos/x" {
		t.Fatalf("unexpected destroyed id %q", destroyed)
	}
}

func TestCloudinaryErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Upload preset not found"}}`)
	}))
	defer srv.Close()

	host := NewCloudinaryHost(config.CloudinaryConfig{CloudName: "demo", APIBase: srv.URL}, srv.Client())
	_, err := host.Upload(context.Background(), Asset{Body: strings.NewReader("x"), Size: 1})
	if err == nil || !strings.Contains(err.Error(), "Upload preset not found") {
		t.Fatalf("expected decoded error, got %v", err)
	}
}
