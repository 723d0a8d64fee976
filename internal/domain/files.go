package domain

import "time"

// FileRecord holds the media of one resort. There is at most one per resort.
type FileRecord struct {
	ResortID  string     `json:"resortId"`
	Images    []MediaRef `json:"images"`
	Videos    []MediaRef `json:"videos"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (f FileRecord) Empty() bool { return len(f.Images) == 0 && len(f.Videos) == 0 }

// Collection returns the refs held for kind.
func (f FileRecord) Collection(kind MediaKind) []MediaRef {
	if kind == KindVideo {
		return f.Videos
	}
	return f.Images
}

// MediaChange is applied to a FileRecord as one store-side mutation:
// every entry matching a removal is dropped, then the additions are appended in order.
type MediaChange struct {
	RemoveImages []MediaRef
	RemoveVideos []MediaRef
	AddImages    []MediaRef
	AddVideos    []MediaRef
}

func (c MediaChange) Empty() bool {
	return len(c.RemoveImages) == 0 && len(c.RemoveVideos) == 0 &&
		len(c.AddImages) == 0 && len(c.AddVideos) == 0
}

// Apply computes the result of c on rec in memory. Stores without a native
// array-update primitive run it inside their own per-record lock or transaction.
func (c MediaChange) Apply(rec FileRecord) FileRecord {
	out := rec
	out.Images = append(RemoveMatching(rec.Images, c.RemoveImages), c.AddImages...)
	out.Videos = append(RemoveMatching(rec.Videos, c.RemoveVideos), c.AddVideos...)
	return out
}

// RemoveMatching returns the entries of refs that match none of removed,
// keeping their relative order. The input slice is not modified.
func RemoveMatching(refs, removed []MediaRef) []MediaRef {
	out := make([]MediaRef, 0, len(refs))
	for _, r := range refs {
		drop := false
		for _, x := range removed {
			if r.Matches(x) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, r)
		}
	}
	return out
}
