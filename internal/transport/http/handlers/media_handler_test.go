package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
	mediasvc "github.com/thecompanyunltd/nightvibe/internal/services/media"
	"github.com/thecompanyunltd/nightvibe/internal/transport/http/dto"
)

type photoUsers struct {
	users map[string]model.User
}

func (s *photoUsers) Get(_ context.Context, id string) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (s *photoUsers) Update(_ context.Context, id string, patch model.UserPatch) error {
	u, ok := s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if patch.Photos != nil {
		u.Photos = append([]model.Photo(nil), (*patch.Photos)...)
	}
	if patch.ProfileComplete != nil {
		u.ProfileComplete = *patch.ProfileComplete
	}
	s.users[id] = u
	return nil
}

type stubHost struct {
	uploads   int
	destroyed []string
}

func (h *stubHost) Upload(_ context.Context, asset mediasvc.Asset) (mediasvc.Hosted, error) {
	h.uploads++
	id := asset.UserID + "-" + asset.FileName
	return mediasvc.Hosted{URL: "https://img.example/" + id, AssetID: id}, nil
}

func (h *stubHost) Destroy(_ context.Context, assetID string) error {
	h.destroyed = append(h.destroyed, assetID)
	return nil
}

func newMediaFixture(t *testing.T, photos int) (*MediaHandler, *photoUsers, *stubHost) {
	t.Helper()
	u := model.User{ID: "u1", Username: "alex"}
	for i := 0; i < photos; i++ {
		u.Photos = append(u.Photos, model.Photo{URL: "https://img.example/" + string(rune('a'+i))})
	}
	users := &photoUsers{users: map[string]model.User{"u1": u}}
	host := &stubHost{}
	svc := mediasvc.NewService(mediasvc.Dependencies{Users: users, Host: host}, mediasvc.Config{
		MaxPhotoBytes:       1 << 20,
		MaxPhotos:           3,
		OnboardingMinPhotos: 2,
	})
	return NewMediaHandler(svc, 1<<20, nil), users, host
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, fileName string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/photos", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withUser(req, "u1")
}

func TestMediaHandlerUploadStoresPhoto(t *testing.T) {
	h, users, host := newMediaFixture(t, 0)

	rr := httptest.NewRecorder()
	h.Upload(rr, uploadRequest(t, "me.png", pngImage(t)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got %d want %d body=%s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var photo dto.PhotoResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &photo); err != nil {
		t.Fatalf("decode photo: %v", err)
	}
	if photo.URL != "https://img.example/u1-me.png" || !photo.Primary || photo.Position != 0 {
		t.Fatalf("unexpected photo: %+v", photo)
	}
	if photo.Width != 4 || photo.Height != 3 {
		t.Fatalf("expected probed dimensions 4x3, got %dx%d", photo.Width, photo.Height)
	}
	if host.uploads != 1 || len(users.users["u1"].Photos) != 1 {
		t.Fatalf("photo not stored: uploads=%d photos=%d", host.uploads, len(users.users["u1"].Photos))
	}
}

func TestMediaHandlerUploadRejectsUnsupportedType(t *testing.T) {
	h, _, host := newMediaFixture(t, 0)

	rr := httptest.NewRecorder()
	h.Upload(rr, uploadRequest(t, "notes.txt", []byte("just some text")))
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnsupportedMediaType)
	}
	if host.uploads != 0 {
		t.Fatalf("host must not be called for rejected files")
	}
}

func TestMediaHandlerUploadRejectsWhenFull(t *testing.T) {
	h, _, _ := newMediaFixture(t, 3)

	rr := httptest.NewRecorder()
	h.Upload(rr, uploadRequest(t, "me.png", pngImage(t)))
	if rr.Code != http.StatusConflict {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusConflict)
	}
}

func TestMediaHandlerDeleteRejectsBadIndex(t *testing.T) {
	h, _, _ := newMediaFixture(t, 1)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("index", "-1")
	req := withUser(httptest.NewRequest(http.MethodDelete, "/v1/photos/-1", nil), "u1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.Delete(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMediaHandlerOnboardingStatus(t *testing.T) {
	h, _, _ := newMediaFixture(t, 1)

	rr := httptest.NewRecorder()
	h.Onboarding(rr, withUser(httptest.NewRequest(http.MethodGet, "/v1/onboarding", nil), "u1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusOK)
	}
	var st dto.OnboardingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode onboarding: %v", err)
	}
	if st.Count != 1 || st.Required != 2 || st.CanProceed {
		t.Fatalf("unexpected onboarding status: %+v", st)
	}

	rr = httptest.NewRecorder()
	h.CompleteOnboarding(rr, withUser(httptest.NewRequest(http.MethodPost, "/v1/onboarding/complete", nil), "u1"))
	if rr.Code != http.StatusConflict {
		t.Fatalf("complete with too few photos: got %d want %d", rr.Code, http.StatusConflict)
	}
}
