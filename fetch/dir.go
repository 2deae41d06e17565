package fetch

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/ontology"
)

// DirFetcher serves type schemas from a directory of JSON files. Each file
// is named after the URL-encoded versioned URL of the schema it holds, with
// a .json extension.
type DirFetcher struct {
	dir string
}

// NewDirFetcher serves schemas from dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{dir: dir}
}

// SchemaFileName returns the file name a schema must be stored under.
func SchemaFileName(u ontology.VersionedURL) string {
	return url.QueryEscape(u.String()) + ".json"
}

// FetchDataType implements ontology.Fetcher.
func (f *DirFetcher) FetchDataType(ctx context.Context, u ontology.VersionedURL) (*ontology.DataType, error) {
	var schema ontology.DataType
	if err := f.read(u, &schema); err != nil {
		return nil, err
	}
	if err := checkFetched(u, schema.ID, schema.Validate()); err != nil {
		return nil, err
	}
	return &schema, nil
}

// FetchPropertyType implements ontology.Fetcher.
func (f *DirFetcher) FetchPropertyType(ctx context.Context, u ontology.VersionedURL) (*ontology.PropertyType, error) {
	var schema ontology.PropertyType
	if err := f.read(u, &schema); err != nil {
		return nil, err
	}
	if err := checkFetched(u, schema.ID, schema.Validate()); err != nil {
		return nil, err
	}
	return &schema, nil
}

// FetchEntityType implements ontology.Fetcher.
func (f *DirFetcher) FetchEntityType(ctx context.Context, u ontology.VersionedURL) (*ontology.EntityType, error) {
	var schema ontology.EntityType
	if err := f.read(u, &schema); err != nil {
		return nil, err
	}
	if err := checkFetched(u, schema.ID, schema.Validate()); err != nil {
		return nil, err
	}
	return &schema, nil
}

func (f *DirFetcher) read(u ontology.VersionedURL, out any) error {
	path := filepath.Join(f.dir, SchemaFileName(u))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return errors.Wrapf(errors.ErrTypeNotFound, "no schema file for %s", u)
	}
	if err != nil {
		return errors.Wrapf(errors.ErrUnreachable, "reading schema file for %s: %v", u, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.WithStack(&errors.InvalidSchemaError{URL: u.String(), Reason: err.Error()})
	}
	return nil
}
