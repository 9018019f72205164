package model

import "time"

// Resume mirrors the `resumes` table.  One user may publish several
// resumes; rows are soft-deleted like every other business entity.
type Resume struct {
	ID         uint64    // resumes.id
	UserID     uint64    // resumes.user_id (owner)
	FirstName  string    // resumes.first_name
	LastName   string    // resumes.last_name
	MiddleName string    // resumes.middle_name
	Age        int       // resumes.age
	Experience string    // resumes.experience
	Education  string    // resumes.education
	About      string    // resumes.about
	IsActive   bool      // resumes.is_active
	CreatedAt  time.Time // resumes.created_at
}
