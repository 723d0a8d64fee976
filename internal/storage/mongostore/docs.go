package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"resort_hub/internal/domain"
)

// Collection and field names follow the documents the admin site has
// always written (camelCase, "files" keyed by resortId).
const (
	colResorts = "resorts"
	colFiles   = "files"
	colReviews = "reviews"
	colAdmins  = "admins"
)

type resortDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Description string             `bson:"description,omitempty"`
	Location    string             `bson:"location,omitempty"`
	Lat         *float64           `bson:"lat,omitempty"`
	Lng         *float64           `bson:"lng,omitempty"`
	Price       float64            `bson:"price"`
	Status      string             `bson:"status"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func toResortDoc(r domain.Resort) resortDoc {
	return resortDoc{
		Name: r.Name, Description: r.Description, Location: r.Location,
		Lat: r.Lat, Lng: r.Lng, Price: r.Price, Status: string(r.Status),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (d resortDoc) domain() domain.Resort {
	st := domain.ResortStatus(d.Status)
	if !st.Valid() {
		st = domain.StatusActive
	}
	return domain.Resort{
		ID: d.ID.Hex(), Name: d.Name, Description: d.Description, Location: d.Location,
		Lat: d.Lat, Lng: d.Lng, Price: d.Price, Status: st,
		CreatedAt: d.CreatedAt.UTC(), UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// summaryDoc is a ListResorts row; image may be a legacy bare string.
type summaryDoc struct {
	resortDoc `bson:",inline"`
	Image     bson.RawValue `bson:"image,omitempty"`
}

type mediaDoc struct {
	URL      string `bson:"url,omitempty"`
	PublicID string `bson:"public_id,omitempty"`
}

func toMediaDocs(refs []domain.MediaRef) []mediaDoc {
	out := make([]mediaDoc, 0, len(refs))
	for _, r := range refs {
		out = append(out, mediaDoc{URL: r.URL, PublicID: r.PublicID})
	}
	return out
}

// fileDoc keeps arrays raw: older documents hold bare URL strings, newer
// ones {url, public_id} objects.
type fileDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ResortID  primitive.ObjectID `bson:"resortId"`
	Images    []bson.RawValue    `bson:"images"`
	Videos    []bson.RawValue    `bson:"videos"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d fileDoc) domain() domain.FileRecord {
	return domain.FileRecord{
		ResortID:  d.ResortID.Hex(),
		Images:    normalizeAll(d.Images),
		Videos:    normalizeAll(d.Videos),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func normalizeAll(vals []bson.RawValue) []domain.MediaRef {
	out := make([]domain.MediaRef, 0, len(vals))
	for _, v := range vals {
		if ref, ok := normalizeRaw(v); ok {
			out = append(out, ref)
		}
	}
	return out
}

func normalizeRaw(v bson.RawValue) (domain.MediaRef, bool) {
	switch v.Type {
	case bson.TypeString:
		return domain.ParseMediaRef(v.StringValue())
	case bson.TypeEmbeddedDocument:
		var m map[string]any
		if err := v.Unmarshal(&m); err != nil {
			return domain.MediaRef{}, false
		}
		return domain.MediaRefFromMap(m)
	}
	return domain.MediaRef{}, false
}

type reviewDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	ResortID  primitive.ObjectID `bson:"resortId"`
	UserName  string             `bson:"userName"`
	Rating    int                `bson:"rating"`
	Comment   string             `bson:"comment,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d reviewDoc) domain() domain.Review {
	return domain.Review{
		ID: d.ID.Hex(), ResortID: d.ResortID.Hex(), Author: d.UserName,
		Rating: d.Rating, Comment: d.Comment, CreatedAt: d.CreatedAt.UTC(),
	}
}

type adminDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Name      string             `bson:"name,omitempty"`
	IsAdmin   bool               `bson:"isAdmin"`
	IsActive  bool               `bson:"isActive"`
	LastLogin *time.Time         `bson:"lastLogin,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d adminDoc) domain() domain.Admin {
	return domain.Admin{
		ID: d.ID.Hex(), Email: d.Email, PasswordHash: d.Password, Name: d.Name,
		IsAdmin: d.IsAdmin, IsActive: d.IsActive, LastLogin: d.LastLogin, CreatedAt: d.CreatedAt.UTC(),
	}
}
