package repository

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS assessments (
  id TEXT PRIMARY KEY,
  submission_id TEXT NOT NULL UNIQUE,
  subject_id TEXT NOT NULL,
  instrument TEXT NOT NULL,
  responses_json TEXT NOT NULL,
  total INTEGER NOT NULL,
  band TEXT NOT NULL,
  label TEXT NOT NULL,
  locale TEXT NOT NULL,
  taken_at INTEGER NOT NULL,
  scored_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS assessments_subject_idx
  ON assessments (subject_id, instrument, taken_at);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS assessments (
  id TEXT PRIMARY KEY,
  submission_id TEXT NOT NULL UNIQUE,
  subject_id TEXT NOT NULL,
  instrument TEXT NOT NULL,
  responses_json TEXT NOT NULL,
  total INTEGER NOT NULL,
  band TEXT NOT NULL,
  label TEXT NOT NULL,
  locale TEXT NOT NULL,
  taken_at BIGINT NOT NULL,
  scored_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS assessments_subject_idx
  ON assessments (subject_id, instrument, taken_at);
`
