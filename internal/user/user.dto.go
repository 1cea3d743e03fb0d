package user

type CreateProfileRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Username string `json:"username" validate:"required,min=1,max=30"`
	Avatar   string `json:"avatar,omitempty"`
}

type UpdateProfileRequest struct {
	Username string `json:"username,omitempty" validate:"omitempty,min=1,max=30"`
	Avatar   string `json:"avatar,omitempty"`
}

type RegisterPushTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type ProfileResponse struct {
	*Profile
	LevelInfo LevelInfo `json:"levelInfo"`
}
