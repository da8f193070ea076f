package postgres

const queryInsertRequestLog = `
INSERT INTO request_log (
    id, request_id, correlation_id, request_type, subject,
    start_time, end_time, response_time_ms,
    status_code, data_source, cache_hit, error
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (request_id) DO NOTHING
`

const queryPurgeRequestLog = `
DELETE FROM request_log WHERE end_time < $1
`

const querySummarizeRequestLog = `
SELECT request_type, status_code, COUNT(*), COALESCE(AVG(response_time_ms), 0)
FROM request_log
WHERE start_time >= $1
GROUP BY request_type, status_code
ORDER BY request_type, status_code
`
