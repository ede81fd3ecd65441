package dto

type CreateUserRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	MaxImages *int   `json:"maxImages,omitempty"`
}

type DeleteUserResponse struct {
	Removed []string `json:"removed"`
}
