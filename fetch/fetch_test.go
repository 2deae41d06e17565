package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum/config"
	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
)

// serveSchemas returns a test server handing out the given documents by
// request path, and rewrites each document's $id to the server's own origin
// so identity checks pass.
func serveSchemas(t *testing.T, documents map[string]map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc, ok := documents[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(doc))
	}))
	t.Cleanup(server.Close)
	return server
}

func textDataTypeDoc(id string) map[string]any {
	return map[string]any{
		"$schema": ontology.DataTypeSchemaURL,
		"kind":    ontology.DataTypeKind,
		"$id":     id,
		"title":   "Text",
		"type":    "string",
	}
}

func TestHTTPFetcher(t *testing.T) {
	fetcher := NewHTTPFetcher(config.FetcherConfig{})

	t.Run("fetches and validates a data type", func(t *testing.T) {
		var doc map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(doc)
		}))
		t.Cleanup(server.Close)
		url := ontology.MustParseVersionedURL(server.URL + "/types/data-type/text/v/1")
		doc = textDataTypeDoc(url.String())

		schema, err := fetcher.FetchDataType(context.Background(), url)
		require.NoError(t, err)
		assert.Equal(t, "Text", schema.Title)
		assert.Equal(t, url, schema.ID)
	})

	t.Run("maps 404 to type-not-found", func(t *testing.T) {
		server := serveSchemas(t, map[string]map[string]any{})
		url := ontology.MustParseVersionedURL(server.URL + "/types/data-type/missing/v/1")

		_, err := fetcher.FetchDataType(context.Background(), url)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrTypeNotFound)
	})

	t.Run("maps server errors to unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		t.Cleanup(server.Close)
		url := ontology.MustParseVersionedURL(server.URL + "/types/data-type/text/v/1")

		_, err := fetcher.FetchDataType(context.Background(), url)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrUnreachable)
	})

	t.Run("maps a refused connection to unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := ontology.MustParseVersionedURL(server.URL + "/types/data-type/text/v/1")
		server.Close()

		_, err := fetcher.FetchDataType(context.Background(), url)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrUnreachable)
	})

	t.Run("rejects a document whose id does not match", func(t *testing.T) {
		server := serveSchemas(t, map[string]map[string]any{
			"/types/data-type/text/v/1": textDataTypeDoc("https://elsewhere.example.com/types/data-type/text/v/1"),
		})
		url := ontology.MustParseVersionedURL(server.URL + "/types/data-type/text/v/1")

		_, err := fetcher.FetchDataType(context.Background(), url)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidSchema)

		var schemaErr *errors.InvalidSchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, url.String(), schemaErr.URL)
	})

	t.Run("rejects an undecodable document", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		t.Cleanup(server.Close)
		url := ontology.MustParseVersionedURL(server.URL + "/types/data-type/text/v/1")

		_, err := fetcher.FetchDataType(context.Background(), url)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidSchema)
	})

	t.Run("rejects a structurally invalid schema", func(t *testing.T) {
		var doc map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(doc)
		}))
		t.Cleanup(server.Close)
		url := ontology.MustParseVersionedURL(server.URL + "/types/data-type/text/v/1")
		doc = textDataTypeDoc(url.String())
		doc["type"] = "tuple"

		_, err := fetcher.FetchDataType(context.Background(), url)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidSchema)
	})
}

func TestDirFetcher(t *testing.T) {
	dir := t.TempDir()
	url := ontology.MustParseVersionedURL("https://example.com/types/data-type/text/v/1")

	raw, err := json.Marshal(textDataTypeDoc(url.String()))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, SchemaFileName(url)), raw, 0o644))

	fetcher := NewDirFetcher(dir)

	t.Run("reads a schema from its file", func(t *testing.T) {
		schema, err := fetcher.FetchDataType(context.Background(), url)
		require.NoError(t, err)
		assert.Equal(t, "Text", schema.Title)
	})

	t.Run("maps a missing file to type-not-found", func(t *testing.T) {
		missing := ontology.MustParseVersionedURL("https://example.com/types/data-type/missing/v/1")
		_, err := fetcher.FetchDataType(context.Background(), missing)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrTypeNotFound)
	})

	t.Run("rejects a file whose id does not match", func(t *testing.T) {
		other := ontology.MustParseVersionedURL("https://example.com/types/data-type/other/v/1")
		raw, err := json.Marshal(textDataTypeDoc(url.String()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, SchemaFileName(other)), raw, 0o644))

		_, err = fetcher.FetchDataType(context.Background(), other)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidSchema)
	})

	t.Run("config selects the directory fetcher", func(t *testing.T) {
		f := FromConfig(config.FetcherConfig{LocalDir: dir})
		_, ok := f.(*DirFetcher)
		assert.True(t, ok)
	})
}
