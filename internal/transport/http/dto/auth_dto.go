package dto

type RegisterRequest struct {
	Username           string `json:"username" validate:"required"`
	Password           string `json:"password" validate:"required"`
	RealName           string `json:"real_name" validate:"required"`
	Phone              string `json:"phone" validate:"required"`
	Age                int    `json:"age" validate:"required"`
	Position           string `json:"position" validate:"required"`
	IAmInto            string `json:"iam_into"`
	RelationshipStatus string `json:"relationship_status" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type ConfirmRequest struct {
	Confirmation string `json:"confirmation"`
}

type AuthMeResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type AuthTokensResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresInSec int64          `json:"expires_in_sec"`
	Redirect     string         `json:"redirect"`
	Me           AuthMeResponse `json:"me"`
}

type RedirectResponse struct {
	Redirect string `json:"redirect"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
