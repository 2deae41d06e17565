// Package fetch retrieves type schemas from their canonical hosts. The HTTP
// fetcher is rate limited so a deep resolution cannot hammer a remote host;
// the directory fetcher serves schemas from local JSON files for tests and
// air-gapped deployments. Both satisfy ontology.Fetcher.
package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stratumdb/stratum/config"
	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/logger"
	"github.com/stratumdb/stratum/ontology"
)

// maxSchemaBytes bounds a fetched schema document. Real type schemas are a
// few kilobytes; anything larger is a misbehaving host.
const maxSchemaBytes = 1 << 20

// FromConfig builds the fetcher the configuration selects: the directory
// fetcher when local_dir is set, and the HTTP fetcher otherwise.
func FromConfig(cfg config.FetcherConfig) ontology.Fetcher {
	if cfg.LocalDir != "" {
		return NewDirFetcher(cfg.LocalDir)
	}
	return NewHTTPFetcher(cfg)
}

// HTTPFetcher retrieves schemas over HTTP from each type's canonical URL.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// NewHTTPFetcher builds a rate-limited HTTP fetcher.
func NewHTTPFetcher(cfg config.FetcherConfig) *HTTPFetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 4
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 8
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		log:     logger.Named("fetch"),
	}
}

// FetchDataType implements ontology.Fetcher.
func (f *HTTPFetcher) FetchDataType(ctx context.Context, url ontology.VersionedURL) (*ontology.DataType, error) {
	var schema ontology.DataType
	if err := f.fetch(ctx, url, &schema); err != nil {
		return nil, err
	}
	if err := checkFetched(url, schema.ID, schema.Validate()); err != nil {
		return nil, err
	}
	return &schema, nil
}

// FetchPropertyType implements ontology.Fetcher.
func (f *HTTPFetcher) FetchPropertyType(ctx context.Context, url ontology.VersionedURL) (*ontology.PropertyType, error) {
	var schema ontology.PropertyType
	if err := f.fetch(ctx, url, &schema); err != nil {
		return nil, err
	}
	if err := checkFetched(url, schema.ID, schema.Validate()); err != nil {
		return nil, err
	}
	return &schema, nil
}

// FetchEntityType implements ontology.Fetcher.
func (f *HTTPFetcher) FetchEntityType(ctx context.Context, url ontology.VersionedURL) (*ontology.EntityType, error) {
	var schema ontology.EntityType
	if err := f.fetch(ctx, url, &schema); err != nil {
		return nil, err
	}
	if err := checkFetched(url, schema.ID, schema.Validate()); err != nil {
		return nil, err
	}
	return &schema, nil
}

// fetch GETs the schema document at the type's canonical URL and decodes it
// into out.
func (f *HTTPFetcher) fetch(ctx context.Context, url ontology.VersionedURL, out any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
	if err != nil {
		return errors.Wrapf(err, "building request for %s", url)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrUnreachable, "fetching %s: %v", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return errors.Wrapf(errors.ErrTypeNotFound, "no schema at %s", url)
	case resp.StatusCode != http.StatusOK:
		return errors.Wrapf(errors.ErrUnreachable, "fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSchemaBytes))
	if err != nil {
		return errors.Wrapf(errors.ErrUnreachable, "reading %s: %v", url, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.WithStack(&errors.InvalidSchemaError{URL: url.String(), Reason: err.Error()})
	}
	f.log.Debugw("fetched type schema", logger.FieldTypeURL, url.String())
	return nil
}

// checkFetched verifies a decoded document: it must be structurally valid
// and its $id must match the URL it was fetched from.
func checkFetched(requested, id ontology.VersionedURL, validateErr error) error {
	if validateErr != nil {
		return errors.WithStack(&errors.InvalidSchemaError{
			URL:    requested.String(),
			Reason: validateErr.Error(),
		})
	}
	if id != requested {
		return errors.WithStack(&errors.InvalidSchemaError{
			URL:    requested.String(),
			Reason: "document $id " + id.String() + " does not match the requested URL",
		})
	}
	return nil
}
