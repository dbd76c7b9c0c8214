package domain

import "time"

// Role names carried in JWT claims and checked by the route/object policies.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	UserID        string     `json:"id" dynamodbav:"user_id"`
	Username      string     `json:"username" dynamodbav:"username"`
	Email         string     `json:"email" dynamodbav:"email"`
	Phone         string     `json:"phone" dynamodbav:"phone"`
	Location      *string    `json:"location,omitempty" dynamodbav:"location"`
	PictureFileID *string    `json:"picture_file_id,omitempty" dynamodbav:"picture_file_id"`
	PasswordHash  string     `json:"-" dynamodbav:"password_hash"`
	Role          string     `json:"role" dynamodbav:"role"`
	Enable        bool       `json:"enable" dynamodbav:"enable"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt     time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// CreateUserRequest is the signup payload. The email doubles as the username;
// the phone must be exactly ten digits.
type CreateUserRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Phone           string `json:"phone" validate:"required,len=10,numeric"`
}

// UpdateProfileRequest carries the allow-listed profile fields an owner may
// change. Role is honored only when the caller is an admin.
type UpdateProfileRequest struct {
	Username      *string `json:"username"`
	Phone         *string `json:"phone" validate:"omitempty,len=10,numeric"`
	Location      *string `json:"location"`
	PictureFileID *string `json:"picture_file_id"`
	Role          *string `json:"role"`
}
