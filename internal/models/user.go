package models

// User is the profile the identity provider's UID is attached to.
type User struct {
	UID             string `json:"uid"`
	Email           string `json:"email"`
	ProfileImageURL string `json:"profileImageUrl"`
}
