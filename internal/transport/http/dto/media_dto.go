package dto

import (
	"time"

	"github.com/thecompanyunltd/nightvibe/internal/domain/model"
)

type PhotoResponse struct {
	Position   int        `json:"position"`
	URL        string     `json:"url"`
	Primary    bool       `json:"primary"`
	Format     string     `json:"format,omitempty"`
	Bytes      int64      `json:"bytes,omitempty"`
	Width      int        `json:"width,omitempty"`
	Height     int        `json:"height,omitempty"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

type PhotosListResponse struct {
	Items []PhotoResponse `json:"items"`
}

type OnboardingResponse struct {
	Count      int  `json:"count"`
	Required   int  `json:"required"`
	CanProceed bool `json:"can_proceed"`
}

func Photos(photos []model.Photo) PhotosListResponse {
	items := make([]PhotoResponse, 0, len(photos))
	for i, p := range photos {
		items = append(items, PhotoFrom(i, p))
	}
	return PhotosListResponse{Items: items}
}

func PhotoFrom(position int, p model.Photo) PhotoResponse {
	return PhotoResponse{
		Position:   position,
		URL:        p.URL,
		Primary:    position == 0,
		Format:     p.Format,
		Bytes:      p.Bytes,
		Width:      p.Width,
		Height:     p.Height,
		UploadedAt: p.UploadedAt,
	}
}
