package mongostore

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"resort_hub/internal/domain"
)

// entryURL and entryID read an array element that is either a bare string
// or a media object. A bare string stands for both.
func entryURL(v string) bson.M {
	return bson.M{"$cond": bson.A{
		bson.M{"$eq": bson.A{bson.M{"$type": v}, "string"}},
		v,
		bson.M{"$ifNull": bson.A{v + ".url", v + ".secure_url", nil}},
	}}
}

func entryID(v string) bson.M {
	return bson.M{"$cond": bson.A{
		bson.M{"$eq": bson.A{bson.M{"$type": v}, "string"}},
		v,
		bson.M{"$ifNull": bson.A{v + ".public_id", v + ".publicId", nil}},
	}}
}

// keys splits removals into the sets the filter matches against: every
// URL, the identifiers of removals without a URL, and every identifier
// (used only for stored entries without a URL).
func keys(refs []domain.MediaRef, extra []string) (urls, bareIDs, ids bson.A) {
	urls, bareIDs, ids = bson.A{}, bson.A{}, bson.A{}
	for _, u := range extra {
		urls = append(urls, u)
	}
	for _, r := range refs {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
		if r.PublicID == "" {
			continue
		}
		ids = append(ids, r.PublicID)
		if r.URL == "" {
			bareIDs = append(bareIDs, r.PublicID)
		}
	}
	return urls, bareIDs, ids
}

// derivedMatches returns, as the filter sees them, the stored entries that
// match one of removed only through normalization: bare strings, and
// objects whose identifier has to be derived from their URL.
func derivedMatches(stored []bson.RawValue, removed []domain.MediaRef) []string {
	var out []string
	for _, v := range stored {
		ref, ok := normalizeRaw(v)
		if !ok {
			continue
		}
		key := ref.URL
		if v.Type == bson.TypeString {
			key = v.StringValue()
		}
		if key == "" {
			continue
		}
		for _, x := range removed {
			if ref.Matches(x) {
				out = append(out, key)
				break
			}
		}
	}
	return out
}

// mediaFieldExpr is field with every entry matching removed filtered out and
// add appended, evaluated against the stored document. It mirrors
// MediaRef.Matches: URLs decide when both sides have one.
func mediaFieldExpr(field string, removed, add []domain.MediaRef, extra []string) bson.M {
	current := bson.M{"$ifNull": bson.A{"$" + field, bson.A{}}}
	kept := any(current)
	if len(removed) > 0 {
		urls, bareIDs, ids := keys(removed, extra)
		kept = bson.M{"$filter": bson.M{
			"input": current,
			"as":    "m",
			"cond": bson.M{"$not": bson.A{bson.M{"$or": bson.A{
				bson.M{"$in": bson.A{entryURL("$$m"), bson.M{"$literal": urls}}},
				bson.M{"$in": bson.A{entryID("$$m"), bson.M{"$literal": bareIDs}}},
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{entryURL("$$m"), nil}},
					bson.M{"$in": bson.A{entryID("$$m"), bson.M{"$literal": ids}}},
				}},
			}}}},
		}}
	}
	return bson.M{"$concatArrays": bson.A{kept, bson.M{"$literal": toMediaDocs(add)}}}
}

// mediaChangePipeline is the update applied by ApplyMediaChange. Running the
// whole remove-then-append as one pipeline update keeps it atomic per
// document, and with upsert it also creates a missing record.
func mediaChangePipeline(resortID primitive.ObjectID, c domain.MediaChange, stored fileDoc) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "resortId", Value: resortID},
			{Key: "images", Value: mediaFieldExpr("images", c.RemoveImages, c.AddImages, derivedMatches(stored.Images, c.RemoveImages))},
			{Key: "videos", Value: mediaFieldExpr("videos", c.RemoveVideos, c.AddVideos, derivedMatches(stored.Videos, c.RemoveVideos))},
			{Key: "createdAt", Value: bson.M{"$ifNull": bson.A{"$createdAt", "$$NOW"}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}
}
