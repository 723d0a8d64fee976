// Package mongostore keeps resorts, their file records, reviews and admins
// in MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"resort_hub/internal/domain"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to uri and pings the server before returning.
func New(ctx context.Context, uri, database string) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return &Store{client: cli, db: cli.Database(database)}, nil
}

func (s *Store) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

// EnsureIndexes creates the indexes the queries rely on. The unique index on
// files.resortId is what makes "at most one file record per resort" hold.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colFiles:   {{Keys: bson.D{{Key: "resortId", Value: 1}}, Options: options.Index().SetUnique(true)}},
		colAdmins:  {{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		colReviews: {{Keys: bson.D{{Key: "resortId", Value: 1}, {Key: "_id", Value: -1}}}},
		colResorts: {{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}}},
	}
	for col, models := range specs {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes %s: %w", col, err)
		}
	}
	return nil
}

func oid(id string) (primitive.ObjectID, error) {
	o, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// an id that can't be ours can't exist
		return primitive.NilObjectID, domain.ErrNotFound
	}
	return o, nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

/********** resorts **********/

func (s *Store) GetResort(ctx context.Context, id string) (domain.Resort, error) {
	o, err := oid(id)
	if err != nil {
		return domain.Resort{}, err
	}
	var d resortDoc
	if err := s.db.Collection(colResorts).FindOne(ctx, bson.M{"_id": o}).Decode(&d); err != nil {
		return domain.Resort{}, mapErr(err)
	}
	return d.domain(), nil
}

func (s *Store) CreateResort(ctx context.Context, r domain.Resort) (domain.Resort, error) {
	d := toResortDoc(r)
	d.ID = primitive.NewObjectID()
	if r.ID != "" {
		o, err := primitive.ObjectIDFromHex(r.ID)
		if err != nil {
			return domain.Resort{}, domain.Invalid("id", "must be an ObjectId")
		}
		d.ID = o
	}
	if _, err := s.db.Collection(colResorts).InsertOne(ctx, d); err != nil {
		return domain.Resort{}, mapErr(err)
	}
	return d.domain(), nil
}

func (s *Store) UpdateResort(ctx context.Context, r domain.Resort) (domain.Resort, error) {
	o, err := oid(r.ID)
	if err != nil {
		return domain.Resort{}, err
	}
	d := toResortDoc(r)
	d.ID = o
	res, err := s.db.Collection(colResorts).ReplaceOne(ctx, bson.M{"_id": o}, d)
	if err != nil {
		return domain.Resort{}, mapErr(err)
	}
	if res.MatchedCount == 0 {
		return domain.Resort{}, domain.ErrNotFound
	}
	return d.domain(), nil
}

func (s *Store) DeleteResort(ctx context.Context, id string) error {
	o, err := oid(id)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(colResorts).DeleteOne(ctx, bson.M{"_id": o})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListResorts returns newest first, each row carrying the first image of
// its file record.
func (s *Store) ListResorts(ctx context.Context, q domain.ResortsQuery) ([]domain.ResortSummary, error) {
	match := bson.M{}
	if q.Status != nil {
		match["status"] = string(*q.Status)
	}
	if q.Q != nil && *q.Q != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(*q.Q), Options: "i"}
		match["$or"] = bson.A{bson.M{"name": re}, bson.M{"location": re}}
	}
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
	}
	if q.Limit > 0 {
		pipe = append(pipe, bson.D{{Key: "$limit", Value: q.Limit}})
	}
	pipe = append(pipe,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": colFiles, "localField": "_id", "foreignField": "resortId", "as": "files",
		}}},
		bson.D{{Key: "$set", Value: bson.M{
			"image": bson.M{"$arrayElemAt": bson.A{
				bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$files.images", 0}}, bson.A{}}},
				0,
			}},
		}}},
		bson.D{{Key: "$project", Value: bson.M{"files": 0}}},
	)

	cur, err := s.db.Collection(colResorts).Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []domain.ResortSummary{}
	for cur.Next(ctx) {
		var d summaryDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		sum := domain.ResortSummary{Resort: d.resortDoc.domain()}
		if ref, ok := normalizeRaw(d.Image); ok {
			sum.Image = &ref
		}
		out = append(out, sum)
	}
	return out, cur.Err()
}

/********** files **********/

func (s *Store) FindByResortID(ctx context.Context, resortID string) (domain.FileRecord, error) {
	o, err := oid(resortID)
	if err != nil {
		return domain.FileRecord{}, err
	}
	var d fileDoc
	if err := s.db.Collection(colFiles).FindOne(ctx, bson.M{"resortId": o}).Decode(&d); err != nil {
		return domain.FileRecord{}, mapErr(err)
	}
	return d.domain(), nil
}

func (s *Store) CreateFiles(ctx context.Context, rec domain.FileRecord) (domain.FileRecord, error) {
	o, err := oid(rec.ResortID)
	if err != nil {
		return domain.FileRecord{}, err
	}
	now := time.Now().UTC()
	doc := bson.M{
		"resortId":  o,
		"images":    toMediaDocs(rec.Images),
		"videos":    toMediaDocs(rec.Videos),
		"createdAt": now,
		"updatedAt": now,
	}
	if _, err := s.db.Collection(colFiles).InsertOne(ctx, doc); err != nil {
		return domain.FileRecord{}, mapErr(err)
	}
	return domain.FileRecord{
		ResortID: rec.ResortID, Images: append([]domain.MediaRef{}, rec.Images...),
		Videos: append([]domain.MediaRef{}, rec.Videos...), CreatedAt: now, UpdatedAt: now,
	}, nil
}

// EnsureFiles upserts an empty record. Two racing upserts can both miss and
// one then fails on the unique index; the retry finds the winner's record.
func (s *Store) EnsureFiles(ctx context.Context, resortID string) (domain.FileRecord, error) {
	o, err := oid(resortID)
	if err != nil {
		return domain.FileRecord{}, err
	}
	update := bson.M{"$setOnInsert": bson.M{
		"resortId": o, "images": bson.A{}, "videos": bson.A{},
		"createdAt": time.Now().UTC(), "updatedAt": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d fileDoc
	for attempt := 0; ; attempt++ {
		err = s.db.Collection(colFiles).FindOneAndUpdate(ctx, bson.M{"resortId": o}, update, opts).Decode(&d)
		if err == nil {
			return d.domain(), nil
		}
		if !mongo.IsDuplicateKeyError(err) || attempt > 0 {
			return domain.FileRecord{}, mapErr(err)
		}
	}
}

func (s *Store) ApplyMediaChange(ctx context.Context, resortID string, c domain.MediaChange) (domain.FileRecord, error) {
	o, err := oid(resortID)
	if err != nil {
		return domain.FileRecord{}, err
	}
	// legacy entries need their identifiers derived before matching
	var stored fileDoc
	if len(c.RemoveImages)+len(c.RemoveVideos) > 0 {
		err := s.db.Collection(colFiles).FindOne(ctx, bson.M{"resortId": o}).Decode(&stored)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return domain.FileRecord{}, err
		}
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	pipe := mediaChangePipeline(o, c, stored)

	var d fileDoc
	for attempt := 0; ; attempt++ {
		err = s.db.Collection(colFiles).FindOneAndUpdate(ctx, bson.M{"resortId": o}, pipe, opts).Decode(&d)
		if err == nil {
			return d.domain(), nil
		}
		if !mongo.IsDuplicateKeyError(err) || attempt > 0 {
			return domain.FileRecord{}, mapErr(err)
		}
	}
}

func (s *Store) DeleteFilesByResortID(ctx context.Context, resortID string) error {
	o, err := oid(resortID)
	if err != nil {
		return nil
	}
	_, err = s.db.Collection(colFiles).DeleteMany(ctx, bson.M{"resortId": o})
	return err
}

// DeleteFilesIfEmpty matches on both arrays being empty, so an append that
// lands first makes the delete a no-op.
func (s *Store) DeleteFilesIfEmpty(ctx context.Context, resortID string) (bool, error) {
	o, err := oid(resortID)
	if err != nil {
		return false, nil
	}
	filter := bson.M{
		"resortId": o,
		"images":   bson.M{"$size": 0},
		"videos":   bson.M{"$size": 0},
	}
	res, err := s.db.Collection(colFiles).DeleteOne(ctx, filter)
	if err != nil {
		return false, mapErr(err)
	}
	return res.DeletedCount > 0, nil
}

/********** reviews **********/

func (s *Store) AddReview(ctx context.Context, r domain.Review) (domain.Review, error) {
	o, err := oid(r.ResortID)
	if err != nil {
		return domain.Review{}, err
	}
	d := reviewDoc{
		ID: primitive.NewObjectID(), ResortID: o, UserName: r.Author,
		Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt,
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.Collection(colReviews).InsertOne(ctx, d); err != nil {
		return domain.Review{}, mapErr(err)
	}
	return d.domain(), nil
}

// ListReviews pages newest first. The cursor is the id of the last review
// of the previous page.
func (s *Store) ListReviews(ctx context.Context, resortID string, pg domain.PageQuery) (domain.ReviewsPage, error) {
	out := domain.ReviewsPage{Items: []domain.Review{}}
	o, err := oid(resortID)
	if err != nil {
		return out, nil
	}
	filter := bson.M{"resortId": o}
	if pg.Cursor != nil && *pg.Cursor != "" {
		after, err := primitive.ObjectIDFromHex(*pg.Cursor)
		if err != nil {
			return out, domain.Invalid("cursor", "is malformed")
		}
		filter["_id"] = bson.M{"$lt": after}
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if pg.Limit > 0 {
		opts.SetLimit(int64(pg.Limit) + 1)
	}

	cur, err := s.db.Collection(colReviews).Find(ctx, filter, opts)
	if err != nil {
		return out, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var d reviewDoc
		if err := cur.Decode(&d); err != nil {
			return out, err
		}
		out.Items = append(out.Items, d.domain())
	}
	if err := cur.Err(); err != nil {
		return out, err
	}
	if pg.Limit > 0 && len(out.Items) > pg.Limit {
		out.Items = out.Items[:pg.Limit]
		next := out.Items[pg.Limit-1].ID
		out.NextCursor = &next
	}
	return out, nil
}

func (s *Store) DeleteReviewsByResortID(ctx context.Context, resortID string) error {
	o, err := oid(resortID)
	if err != nil {
		return nil
	}
	_, err = s.db.Collection(colReviews).DeleteMany(ctx, bson.M{"resortId": o})
	return err
}

/********** admins **********/

func (s *Store) CreateAdmin(ctx context.Context, a domain.Admin) (domain.Admin, error) {
	d := adminDoc{
		ID: primitive.NewObjectID(), Email: a.Email, Password: a.PasswordHash, Name: a.Name,
		IsAdmin: a.IsAdmin, IsActive: a.IsActive, LastLogin: a.LastLogin, CreatedAt: a.CreatedAt,
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.Collection(colAdmins).InsertOne(ctx, d); err != nil {
		return domain.Admin{}, mapErr(err)
	}
	return d.domain(), nil
}

func (s *Store) FindAdminByEmail(ctx context.Context, email string) (domain.Admin, error) {
	var d adminDoc
	if err := s.db.Collection(colAdmins).FindOne(ctx, bson.M{"email": email}).Decode(&d); err != nil {
		return domain.Admin{}, mapErr(err)
	}
	return d.domain(), nil
}

func (s *Store) GetAdmin(ctx context.Context, id string) (domain.Admin, error) {
	o, err := oid(id)
	if err != nil {
		return domain.Admin{}, err
	}
	var d adminDoc
	if err := s.db.Collection(colAdmins).FindOne(ctx, bson.M{"_id": o}).Decode(&d); err != nil {
		return domain.Admin{}, mapErr(err)
	}
	return d.domain(), nil
}

func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	o, err := oid(id)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(colAdmins).UpdateOne(ctx, bson.M{"_id": o}, bson.M{"$set": bson.M{"lastLogin": at.UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var (
	_ domain.ResortRepository = (*Store)(nil)
	_ domain.FileRepository   = (*Store)(nil)
	_ domain.ReviewRepository = (*Store)(nil)
	_ domain.AdminRepository  = (*Store)(nil)
)
