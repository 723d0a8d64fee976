package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"resort_hub/internal/domain"
)

const errDupEntry = 1062

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func mapErr(err error) error {
	var me *gomysql.MySQLError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrNotFound
	case errors.As(err, &me) && me.Number == errDupEntry:
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type scanner interface{ Scan(dest ...any) error }

/********** resorts **********/

func scanResort(s scanner, extra ...any) (domain.Resort, error) {
	var r domain.Resort
	var desc, loc sql.NullString
	var lat, lng sql.NullFloat64
	var status string
	dest := append([]any{&r.ID, &r.Name, &desc, &loc, &lat, &lng, &r.Price, &status, &r.CreatedAt, &r.UpdatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return domain.Resort{}, err
	}
	r.Description = desc.String
	r.Location = loc.String
	if lat.Valid {
		v := lat.Float64
		r.Lat = &v
	}
	if lng.Valid {
		v := lng.Float64
		r.Lng = &v
	}
	r.Status = domain.ResortStatus(status)
	if !r.Status.Valid() {
		r.Status = domain.StatusActive
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func (r *Repo) GetResort(ctx context.Context, id string) (domain.Resort, error) {
	res, err := scanResort(r.db.QueryRowContext(ctx, getResortSQL, id))
	if err != nil {
		return domain.Resort{}, mapErr(err)
	}
	return res, nil
}

func (r *Repo) CreateResort(ctx context.Context, res domain.Resort) (domain.Resort, error) {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, insertResortSQL,
		res.ID,
		res.Name,
		valStr(res.Description),
		valStr(res.Location),
		valF64(res.Lat),
		valF64(res.Lng),
		res.Price,
		string(res.Status),
		res.CreatedAt.UTC(),
		res.UpdatedAt.UTC(),
	)
	if err != nil {
		return domain.Resort{}, mapErr(err)
	}
	return res, nil
}

func (r *Repo) UpdateResort(ctx context.Context, res domain.Resort) (domain.Resort, error) {
	out, err := r.db.ExecContext(ctx, updateResortSQL,
		res.Name,
		valStr(res.Description),
		valStr(res.Location),
		valF64(res.Lat),
		valF64(res.Lng),
		res.Price,
		string(res.Status),
		res.UpdatedAt.UTC(),
		res.ID,
	)
	if err != nil {
		return domain.Resort{}, mapErr(err)
	}
	// RowsAffected is 0 for an unchanged row as well as a missing one
	if n, _ := out.RowsAffected(); n == 0 {
		if _, err := r.GetResort(ctx, res.ID); err != nil {
			return domain.Resort{}, err
		}
	}
	return res, nil
}

func (r *Repo) DeleteResort(ctx context.Context, id string) error {
	out, err := r.db.ExecContext(ctx, deleteResortSQL, id)
	if err != nil {
		return err
	}
	if n, _ := out.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func likeEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *Repo) ListResorts(ctx context.Context, q domain.ResortsQuery) ([]domain.ResortSummary, error) {
	var where []string
	var args []any
	if q.Status != nil {
		where = append(where, "r.status = ?")
		args = append(args, string(*q.Status))
	}
	if q.Q != nil && *q.Q != "" {
		pat := "%" + likeEscape(*q.Q) + "%"
		where = append(where, "(r.name LIKE ? OR r.location LIKE ?)")
		args = append(args, pat, pat)
	}
	query := listResortsPrefix
	if len(where) > 0 {
		query += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	query += "ORDER BY r.created_at DESC, r.id DESC\n"
	if q.Limit > 0 {
		query += "LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ResortSummary{}
	for rows.Next() {
		var image []byte
		res, err := scanResort(rows, &image)
		if err != nil {
			return nil, err
		}
		sum := domain.ResortSummary{Resort: res}
		if ref, ok := decodeRef(image); ok {
			sum.Image = &ref
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

/********** files **********/

// decodeRef accepts both stored shapes: a bare URL string or an object.
func decodeRef(b []byte) (domain.MediaRef, bool) {
	if len(b) == 0 {
		return domain.MediaRef{}, false
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return domain.MediaRef{}, false
	}
	return domain.NormalizeMedia(v)
}

func decodeRefs(b []byte) []domain.MediaRef {
	var raw []json.RawMessage
	_ = json.Unmarshal(b, &raw)
	out := make([]domain.MediaRef, 0, len(raw))
	for _, m := range raw {
		if ref, ok := decodeRef(m); ok {
			out = append(out, ref)
		}
	}
	return out
}

func encodeRefs(refs []domain.MediaRef) string {
	if refs == nil {
		refs = []domain.MediaRef{}
	}
	b, _ := json.Marshal(refs)
	return string(b)
}

func scanFiles(s scanner) (domain.FileRecord, error) {
	var rec domain.FileRecord
	var images, videos []byte
	if err := s.Scan(&rec.ResortID, &images, &videos, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.FileRecord{}, mapErr(err)
	}
	rec.Images = decodeRefs(images)
	rec.Videos = decodeRefs(videos)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func (r *Repo) FindByResortID(ctx context.Context, resortID string) (domain.FileRecord, error) {
	return scanFiles(r.db.QueryRowContext(ctx, getFilesSQL, resortID))
}

func (r *Repo) CreateFiles(ctx context.Context, rec domain.FileRecord) (domain.FileRecord, error) {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, insertFilesSQL, rec.ResortID, encodeRefs(rec.Images), encodeRefs(rec.Videos), now, now)
	if err != nil {
		return domain.FileRecord{}, mapErr(err)
	}
	return r.FindByResortID(ctx, rec.ResortID)
}

func (r *Repo) EnsureFiles(ctx context.Context, resortID string) (domain.FileRecord, error) {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, ensureFilesSQL, resortID, now, now); err != nil {
		return domain.FileRecord{}, err
	}
	return r.FindByResortID(ctx, resortID)
}

// ApplyMediaChange holds the row lock from read to write, so concurrent
// changes to one resort serialize instead of losing each other's entries.
// The row is created before the transaction: INSERT IGNORE inside it would
// take a shared lock that deadlocks against a second writer's FOR UPDATE.
func (r *Repo) ApplyMediaChange(ctx context.Context, resortID string, c domain.MediaChange) (domain.FileRecord, error) {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, ensureFilesSQL, resortID, now, now); err != nil {
		return domain.FileRecord{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.FileRecord{}, err
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := scanFiles(tx.QueryRowContext(ctx, lockFilesSQL, resortID))
	if err != nil {
		return domain.FileRecord{}, err
	}
	rec = c.Apply(rec)
	rec.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, saveFilesSQL,
		resortID, encodeRefs(rec.Images), encodeRefs(rec.Videos), rec.CreatedAt, now); err != nil {
		return domain.FileRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.FileRecord{}, err
	}
	return rec, nil
}

func (r *Repo) DeleteFilesByResortID(ctx context.Context, resortID string) error {
	_, err := r.db.ExecContext(ctx, deleteFilesSQL, resortID)
	return err
}

func (r *Repo) DeleteFilesIfEmpty(ctx context.Context, resortID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteEmptyFilesSQL, resortID)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

/********** reviews **********/

func (r *Repo) AddReview(ctx context.Context, rv domain.Review) (domain.Review, error) {
	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.ID, rv.ResortID, rv.Author, rv.Rating, valStr(rv.Comment), rv.CreatedAt.UTC())
	if err != nil {
		return domain.Review{}, mapErr(err)
	}
	return rv, nil
}

func (r *Repo) ListReviews(ctx context.Context, resortID string, pg domain.PageQuery) (domain.ReviewsPage, error) {
	limit := pg.Limit
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if pg.Cursor != nil && *pg.Cursor != "" {
		rows, err = r.db.QueryContext(ctx, listReviewsAfterSQL, resortID, *pg.Cursor, limit+1)
	} else {
		rows, err = r.db.QueryContext(ctx, listReviewsSQL, resortID, limit+1)
	}
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		var comment sql.NullString
		if err := rows.Scan(&rv.ID, &rv.ResortID, &rv.Author, &rv.Rating, &comment, &rv.CreatedAt); err != nil {
			return domain.ReviewsPage{}, err
		}
		rv.Comment = comment.String
		rv.CreatedAt = rv.CreatedAt.UTC()
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}
	page := domain.ReviewsPage{Items: out}
	if len(out) > limit {
		page.Items = out[:limit]
		next := out[limit-1].ID
		page.NextCursor = &next
	}
	return page, nil
}

func (r *Repo) DeleteReviewsByResortID(ctx context.Context, resortID string) error {
	_, err := r.db.ExecContext(ctx, deleteReviewsSQL, resortID)
	return err
}

/********** admins **********/

func scanAdmin(s scanner) (domain.Admin, error) {
	var a domain.Admin
	var name sql.NullString
	var last sql.NullTime
	if err := s.Scan(&a.ID, &a.Email, &a.PasswordHash, &name, &a.IsAdmin, &a.IsActive, &last, &a.CreatedAt); err != nil {
		return domain.Admin{}, mapErr(err)
	}
	a.Name = name.String
	if last.Valid {
		t := last.Time.UTC()
		a.LastLogin = &t
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func (r *Repo) CreateAdmin(ctx context.Context, a domain.Admin) (domain.Admin, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertAdminSQL,
		a.ID, a.Email, a.PasswordHash, valStr(a.Name), a.IsAdmin, a.IsActive, valTime(a.LastLogin), a.CreatedAt.UTC())
	if err != nil {
		return domain.Admin{}, mapErr(err)
	}
	return a, nil
}

func (r *Repo) FindAdminByEmail(ctx context.Context, email string) (domain.Admin, error) {
	return scanAdmin(r.db.QueryRowContext(ctx, getAdminByEmailSQL, email))
}

func (r *Repo) GetAdmin(ctx context.Context, id string) (domain.Admin, error) {
	return scanAdmin(r.db.QueryRowContext(ctx, getAdminSQL, id))
}

func (r *Repo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	out, err := r.db.ExecContext(ctx, touchLastLoginSQL, at.UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := out.RowsAffected(); n == 0 {
		_, err := r.GetAdmin(ctx, id)
		return err
	}
	return nil
}

var (
	_ domain.ResortRepository = (*Repo)(nil)
	_ domain.FileRepository   = (*Repo)(nil)
	_ domain.ReviewRepository = (*Repo)(nil)
	_ domain.AdminRepository  = (*Repo)(nil)
)
