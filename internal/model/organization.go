package model

import "time"

// Organization is a food bank, shelter or other receiver of donations.
type Organization struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Address        string    `json:"address"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	Website        string    `json:"website,omitempty"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	OrgType        string    `json:"org_type,omitempty"`
	Capacity       int       `json:"capacity,omitempty"`
	OperatingHours string    `json:"operating_hours,omitempty"`
	Requirements   string    `json:"requirements,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}
