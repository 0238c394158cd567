package storage

// notifyChannel carries the collection path of every changed document.
const notifyChannel = "documents_changed"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	collection_path TEXT NOT NULL,
	doc_id          TEXT NOT NULL,
	data            JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection_path, doc_id)
);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE OR REPLACE FUNCTION jsonb_set_deep(doc JSONB, path TEXT[], value JSONB) RETURNS JSONB AS $$
DECLARE
	i INT;
BEGIN
	IF doc IS NULL OR jsonb_typeof(doc) <> 'object' THEN
		doc := '{}'::jsonb;
	END IF;
	FOR i IN 1 .. COALESCE(array_length(path, 1), 0) - 1 LOOP
		IF jsonb_typeof(doc #> path[1:i]) IS DISTINCT FROM 'object' THEN
			doc := jsonb_set(doc, path[1:i], '{}'::jsonb, true);
		END IF;
	END LOOP;
	RETURN jsonb_set(doc, path, value, true);
END;
$$ LANGUAGE plpgsql IMMUTABLE;

CREATE OR REPLACE FUNCTION documents_notify() RETURNS TRIGGER AS $$
DECLARE
	path TEXT;
BEGIN
	IF TG_OP = 'DELETE' THEN
		path := OLD.collection_path;
	ELSE
		path := NEW.collection_path;
	END IF;
	PERFORM pg_notify('documents_changed', path);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS documents_notify ON documents;
CREATE TRIGGER documents_notify
	AFTER INSERT OR UPDATE OR DELETE ON documents
	FOR EACH ROW EXECUTE FUNCTION documents_notify();
`
