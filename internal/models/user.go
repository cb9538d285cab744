package models

import "time"

// UserRole distinguishes teaching staff from administrators.
type UserRole string

const (
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User is an account stored in the users table.
type User struct {
	ID                   string    `db:"id" json:"id"`
	Role                 UserRole  `db:"role" json:"role"`
	Name                 string    `db:"name" json:"name"`
	Email                string    `db:"email" json:"email"`
	MobileNumber         string    `db:"mobile_number" json:"mobileNumber"`
	PasswordHash         string    `db:"password_hash" json:"-"`
	TeacherID            *string   `db:"teacher_id" json:"teacherId,omitempty"`
	Department           *string   `db:"department" json:"department,omitempty"`
	ProfileImageURL      *string   `db:"profile_image_url" json:"-"`
	ProfileImagePublicID *string   `db:"profile_image_public_id" json:"-"`
	CreatedAt            time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time `db:"updated_at" json:"updatedAt"`
}

// ProfileImage references a hosted picture.
type ProfileImage struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// UserProfile is the public view of an account; it never carries the password hash.
type UserProfile struct {
	ID           string        `json:"id"`
	Role         UserRole      `json:"role"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	MobileNumber string        `json:"mobileNumber"`
	TeacherID    string        `json:"teacherId,omitempty"`
	Department   string        `json:"department,omitempty"`
	ProfileImage *ProfileImage `json:"profileImage,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// Profile converts the account into its public view.
func (u *User) Profile() UserProfile {
	p := UserProfile{
		ID:           u.ID,
		Role:         u.Role,
		Name:         u.Name,
		Email:        u.Email,
		MobileNumber: u.MobileNumber,
		TeacherID:    deref(u.TeacherID),
		Department:   deref(u.Department),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if url := deref(u.ProfileImageURL); url != "" {
		p.ProfileImage = &ProfileImage{URL: url, PublicID: deref(u.ProfileImagePublicID)}
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
