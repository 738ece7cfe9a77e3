package storage

import "errors"

var (
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrTokenNotFound = errors.New("verification token not found")
	ErrMediaNotFound = errors.New("media not found")
)

// MediaListLimit caps how many media items a single list call returns.
const MediaListLimit = 1000
