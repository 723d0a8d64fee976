package mysql

// -----------------------------------------------------------------------------
// RESORTS
// -----------------------------------------------------------------------------

const insertResortSQL = `
INSERT INTO resorts
  (id, name, description, location, lat, lng, price, status, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateResortSQL = `
UPDATE resorts SET
  name        = ?,
  description = ?,
  location    = ?,
  lat         = ?,
  lng         = ?,
  price       = ?,
  status      = ?,
  updated_at  = ?
WHERE id = ?
`

const resortColumns = `id, name, description, location, lat, lng, price, status, created_at, updated_at`

const getResortSQL = `SELECT ` + resortColumns + ` FROM resorts WHERE id = ?`

// The first image comes straight out of the JSON column; the repo normalizes it.
const listResortsPrefix = `
SELECT
  r.id, r.name, r.description, r.location, r.lat, r.lng, r.price, r.status,
  r.created_at, r.updated_at,
  JSON_EXTRACT(f.images, '$[0]') AS image
FROM resorts r
LEFT JOIN resort_files f ON f.resort_id = r.id
`

const deleteResortSQL = `DELETE FROM resorts WHERE id = ?`

// -----------------------------------------------------------------------------
// FILES
// -----------------------------------------------------------------------------

const insertFilesSQL = `
INSERT INTO resort_files (resort_id, images, videos, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
`

// Racing inserts collapse into one row on the primary key.
const ensureFilesSQL = `
INSERT IGNORE INTO resort_files (resort_id, images, videos, created_at, updated_at)
VALUES (?, JSON_ARRAY(), JSON_ARRAY(), ?, ?)
`

const getFilesSQL = `
SELECT resort_id, images, videos, created_at, updated_at
FROM resort_files WHERE resort_id = ?
`

const lockFilesSQL = getFilesSQL + ` FOR UPDATE`

const saveFilesSQL = `
INSERT INTO resort_files (resort_id, images, videos, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  images     = VALUES(images),
  videos     = VALUES(videos),
  updated_at = VALUES(updated_at)
`

const deleteFilesSQL = `DELETE FROM resort_files WHERE resort_id = ?`

const deleteEmptyFilesSQL = `
DELETE FROM resort_files
WHERE resort_id = ? AND JSON_LENGTH(images) = 0 AND JSON_LENGTH(videos) = 0`

// -----------------------------------------------------------------------------
// REVIEWS
// -----------------------------------------------------------------------------

const insertReviewSQL = `
INSERT INTO reviews (id, resort_id, user_name, rating, comment, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const listReviewsSQL = `
SELECT id, resort_id, user_name, rating, comment, created_at
FROM reviews
WHERE resort_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`

// listReviewsAfterSQL pages past the cursor review on (created_at, id).
const listReviewsAfterSQL = `
SELECT id, resort_id, user_name, rating, comment, created_at
FROM reviews
WHERE resort_id = ?
  AND (created_at, id) < (SELECT c.created_at, c.id FROM reviews c WHERE c.id = ?)
ORDER BY created_at DESC, id DESC
LIMIT ?
`

const deleteReviewsSQL = `DELETE FROM reviews WHERE resort_id = ?`

// -----------------------------------------------------------------------------
// ADMINS
// -----------------------------------------------------------------------------

const insertAdminSQL = `
INSERT INTO admins (id, email, password_hash, name, is_admin, is_active, last_login, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const adminColumns = `id, email, password_hash, name, is_admin, is_active, last_login, created_at`

const getAdminByEmailSQL = `SELECT ` + adminColumns + ` FROM admins WHERE email = ?`

const getAdminSQL = `SELECT ` + adminColumns + ` FROM admins WHERE id = ?`

const touchLastLoginSQL = `UPDATE admins SET last_login = ? WHERE id = ?`
