package postgres

const notifyChannel = "lobby_kv"

var querySchema = []string{
	`CREATE SEQUENCE IF NOT EXISTS lobby_kv_revision`,
	`CREATE TABLE IF NOT EXISTS lobby_kv (
		key      text PRIMARY KEY,
		value    bytea NOT NULL,
		revision bigint NOT NULL
	)`,
}

const queryGet = `
	SELECT value, revision
	FROM lobby_kv
	WHERE key = $1
`

const queryCreate = `
	INSERT INTO lobby_kv (key, value, revision)
	VALUES ($1, $2, nextval('lobby_kv_revision'))
	ON CONFLICT (key) DO NOTHING
	RETURNING revision
`

const queryUpdate = `
	UPDATE lobby_kv
	SET value = $2, revision = nextval('lobby_kv_revision')
	WHERE key = $1 AND revision = $3
	RETURNING revision
`

const queryDelete = `
	DELETE FROM lobby_kv
	WHERE key = $1
	RETURNING nextval('lobby_kv_revision')
`

const queryNotify = `SELECT pg_notify('` + notifyChannel + `', $1)`
