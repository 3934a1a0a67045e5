// Package user authenticates the back-office administrators who run
// cancellations and shipping.
package user

import "time"

type Admin struct {
	ID           uint      `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
