// Package domain holds the core banking entities shared across services.
package domain

import "time"

// User is the bank customer profile. Sensitive fields feed the AI layer only
// through consent-gated extractors.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	DateOfBirth      time.Time `json:"dateOfBirth"`
	Address          string    `json:"address"`
	Income           float64   `json:"income"`
	CreditScore      int       `json:"creditScore"`
	EmploymentStatus string    `json:"employmentStatus"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Age computes full years at now, accounting for whether the birthday has
// passed this year.
func (u User) Age(now time.Time) int {
	years := now.Year() - u.DateOfBirth.Year()
	if now.Month() < u.DateOfBirth.Month() ||
		(now.Month() == u.DateOfBirth.Month() && now.Day() < u.DateOfBirth.Day()) {
		years--
	}
	return years
}
