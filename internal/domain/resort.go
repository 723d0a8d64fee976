package domain

import "time"

type ResortStatus string

const (
	StatusActive   ResortStatus = "active"
	StatusInactive ResortStatus = "inactive"
	StatusPending  ResortStatus = "pending"
)

func (s ResortStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending:
		return true
	}
	return false
}

type Resort struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Location    string       `json:"location,omitempty"`
	Lat         *float64     `json:"lat,omitempty"`
	Lng         *float64     `json:"lng,omitempty"`
	Price       float64      `json:"price"`
	Status      ResortStatus `json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// HasCoords reports whether both halves of the coordinate are set.
func (r Resort) HasCoords() bool { return r.Lat != nil && r.Lng != nil }

// ResortSummary is a list row: the resort plus the first image of its file record.
type ResortSummary struct {
	Resort
	Image *MediaRef `json:"image,omitempty"`
}

// ResortDetail is the read model behind GET /resorts/{id}.
type ResortDetail struct {
	Resort Resort       `json:"resort"`
	Files  []FileRecord `json:"files"`
}

type ResortsQuery struct {
	Status *ResortStatus
	Q      *string
	Limit  int
}
