package model

import "time"

// Comment mirrors the `comments` table.  Comments hang off a vacancy
// and belong to the user who wrote them.
type Comment struct {
	ID        uint64    // comments.id
	VacancyID uint64    // comments.vacancy_id
	UserID    uint64    // comments.user_id (author)
	Text      string    // comments.text
	IsActive  bool      // comments.is_active
	CreatedAt time.Time // comments.created_at
}
