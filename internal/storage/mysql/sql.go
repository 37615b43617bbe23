package mysql

const integrationColumns = `
  id, business_id, platform, external_account_id, external_location_id,
  access_token, refresh_token, expires_at, scopes, is_active, reconnect_required,
  connected_at, last_sync_at, display_name, address`

const getActiveIntegrationSQL = `SELECT` + integrationColumns + `
FROM integrations
WHERE business_id = ? AND platform = ? AND is_active = 1`

const listActiveIntegrationsSQL = `SELECT` + integrationColumns + `
FROM integrations
WHERE business_id = ? AND is_active = 1
ORDER BY platform`

const listActiveBusinessesSQL = `
SELECT DISTINCT business_id FROM integrations WHERE is_active = 1 ORDER BY business_id`

const lockActiveIntegrationSQL = `
SELECT id, last_sync_at FROM integrations
WHERE business_id = ? AND platform = ? AND is_active = 1
FOR UPDATE`

const insertIntegrationSQL = `
INSERT INTO integrations
  (id, business_id, platform, external_account_id, external_location_id,
   access_token, refresh_token, expires_at, scopes, is_active, reconnect_required,
   connected_at, display_name, address)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0, ?, ?, ?)`

// A reconnect replaces the grant and clears the reconnect marker.
const replaceGrantSQL = `
UPDATE integrations SET
  external_account_id  = ?,
  external_location_id = ?,
  access_token         = ?,
  refresh_token        = ?,
  expires_at           = ?,
  scopes               = ?,
  reconnect_required   = 0,
  connected_at         = ?,
  display_name         = ?,
  address              = ?
WHERE id = ?`

const updateTokensSQL = `
UPDATE integrations SET access_token = ?, refresh_token = ?, expires_at = ?, scopes = ?, reconnect_required = 0
WHERE id = ?`

const touchLastSyncSQL = `UPDATE integrations SET last_sync_at = ? WHERE id = ?`

const markReconnectSQL = `UPDATE integrations SET reconnect_required = 1 WHERE id = ?`

const deactivateSQL = `UPDATE integrations SET is_active = 0 WHERE id = ?`

// Note: `text` is reserved; keep it quoted everywhere.
const reviewColumns = "\n  id, business_id, platform, external_id, author_name, author_email, rating, `text`,\n" +
	"  posted_at, created_at, sentiment, draft_response, has_responded, responded_at,\n" +
	"  response_text, platform_url, author_photo_url, is_verified"

const insertReviewSQL = "INSERT INTO reviews (" + reviewColumns + ")\nVALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

const getReviewByIDSQL = "SELECT" + reviewColumns + "\nFROM reviews WHERE id = ?"

const getReviewByExternalSQL = "SELECT" + reviewColumns + "\nFROM reviews WHERE platform = ? AND external_id = ?"

// COALESCE keeps the stored value when the caller passes NULL.
const updateAnnotationSQL = `
UPDATE reviews SET
  sentiment      = COALESCE(?, sentiment),
  draft_response = COALESCE(?, draft_response)
WHERE id = ?`

// Conditional on has_responded so responded fields are written once.
const markRespondedSQL = `
UPDATE reviews SET has_responded = 1, response_text = ?, responded_at = ?
WHERE id = ? AND has_responded = 0`

const listPostedSQL = "SELECT" + reviewColumns + `
FROM reviews
WHERE business_id = ? AND posted_at >= ? AND posted_at < ?
ORDER BY posted_at DESC, id DESC`

const countPostedSQL = `
SELECT COUNT(*) FROM reviews
WHERE business_id = ? AND posted_at >= ? AND posted_at < ?`

const listReviewedBusinessesSQL = `
SELECT DISTINCT business_id FROM reviews ORDER BY business_id`

const upsertMetricsSQL = `
INSERT INTO review_metrics
  (business_id, metric_date, total_reviews, positive_reviews, neutral_reviews, negative_reviews,
   responded_reviews, new_reviews, average_rating, created_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  total_reviews     = VALUES(total_reviews),
  positive_reviews  = VALUES(positive_reviews),
  neutral_reviews   = VALUES(neutral_reviews),
  negative_reviews  = VALUES(negative_reviews),
  responded_reviews = VALUES(responded_reviews),
  new_reviews       = VALUES(new_reviews),
  average_rating    = VALUES(average_rating)
`

const metricsColumns = `
  business_id, metric_date, total_reviews, positive_reviews, neutral_reviews, negative_reviews,
  responded_reviews, new_reviews, average_rating, created_at`

const getMetricsSQL = `SELECT` + metricsColumns + `
FROM review_metrics WHERE business_id = ? AND metric_date = ?`

const listMetricsSQL = `SELECT` + metricsColumns + `
FROM review_metrics
WHERE business_id = ? AND metric_date >= ? AND metric_date < ?
ORDER BY metric_date`

const countMetricsSQL = `SELECT COUNT(*) FROM review_metrics WHERE business_id = ?`
