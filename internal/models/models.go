package models

import "time"

const DefaultMediaStatus = "plan"

type User struct {
	ID                string    `bson:"_id"`
	Email             string    `bson:"email"`
	Name              string    `bson:"name"`
	PassHash          string    `bson:"hashed_password"`
	IsVerified        bool      `bson:"is_verified"`
	VerificationToken *string   `bson:"verification_token,omitempty"`
	CreatedAt         time.Time `bson:"created_at"`
}

// UserResponse is the public projection of a User. It never carries the password hash
// or the verification token.
type UserResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	IsVerified bool   `json:"is_verified"`
}

func (u User) Public() UserResponse {
	return UserResponse{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		IsVerified: u.IsVerified,
	}
}

type MediaItem struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Title     string    `json:"title" bson:"title"`
	Type      string    `json:"type" bson:"type"`
	Status    string    `json:"status" bson:"status"`
	Current   int       `json:"current" bson:"current"`
	Total     int       `json:"total" bson:"total"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// MediaPatch holds a partial update. Nil fields are left untouched.
type MediaPatch struct {
	Title   *string
	Type    *string
	Status  *string
	Current *int
	Total   *int
}

func (p MediaPatch) Empty() bool {
	return p.Title == nil && p.Type == nil && p.Status == nil && p.Current == nil && p.Total == nil
}

// Message is the payload handed to the mail pipeline, either directly or through the queue.
type Message struct {
	Email   string `json:"to"`
	Name    string `json:"name"`
	Link    string `json:"link"`
	Purpose string `json:"purpose"`
}
