package model

import "time"

// Vacancy mirrors the `vacancies` table.  A vacancy is a job posting
// owned by the user who created it.  Soft delete only: IsActive flips
// to false, comments stay attached.
type Vacancy struct {
	ID           uint64    // vacancies.id
	UserID       uint64    // vacancies.user_id (posting owner)
	PlaceOfWork  string    // vacancies.place_of_work
	AboutCompany string    // vacancies.about_company
	Specialty    string    // vacancies.specialty
	Salary       string    // vacancies.salary
	Conditions   string    // vacancies.conditions
	Experience   string    // vacancies.experience
	Vacant       string    // vacancies.vacant ("yes"/"no")
	IsActive     bool      // vacancies.is_active
	CreatedAt    time.Time // vacancies.created_at
}
