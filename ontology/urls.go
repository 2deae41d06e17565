// Package ontology models the three type kinds of the graph — data types,
// property types, and entity types — together with their versioned URLs,
// edition metadata, and reference resolution.
package ontology

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/stratumdb/stratum/errors"
)

// maxURLLength bounds stored type URLs. Longer URLs are rejected at parse
// time rather than truncated.
const maxURLLength = 2048

const versionedURLSeparator = "v/"

// BaseURL is the version-independent identity of a type: an absolute http(s)
// URL ending in a trailing slash.
type BaseURL string

// ParseBaseURL validates s and returns it as a BaseURL.
func ParseBaseURL(s string) (BaseURL, error) {
	b := BaseURL(s)
	if err := b.Validate(); err != nil {
		return "", err
	}
	return b, nil
}

// Validate checks the structural rules for a base URL.
func (b BaseURL) Validate() error {
	s := string(b)
	if len(s) > maxURLLength {
		return errors.Newf("base url exceeds %d bytes", maxURLLength)
	}
	if !strings.HasSuffix(s, "/") {
		return errors.Newf("base url %q must end with a trailing slash", s)
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return errors.Wrapf(err, "parsing base url %q", s)
	}
	if !parsed.IsAbs() || parsed.Host == "" {
		return errors.Newf("base url %q must be absolute", s)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.Newf("base url %q must use http or https", s)
	}
	return nil
}

func (b BaseURL) String() string {
	return string(b)
}

// UnmarshalText validates the URL on decode so malformed base URLs never
// enter the domain model. Used for both JSON values and JSON object keys.
func (b *BaseURL) UnmarshalText(text []byte) error {
	parsed, err := ParseBaseURL(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// VersionedURL pins a type to one exact version: "<base>v/<version>".
type VersionedURL struct {
	Base    BaseURL
	Version uint32
}

// ParseVersionedURL splits s into its base URL and version.
func ParseVersionedURL(s string) (VersionedURL, error) {
	if len(s) > maxURLLength {
		return VersionedURL{}, errors.Newf("versioned url exceeds %d bytes", maxURLLength)
	}
	idx := strings.LastIndex(s, versionedURLSeparator)
	if idx < 0 {
		return VersionedURL{}, errors.Newf("versioned url %q is missing the %q version marker", s, versionedURLSeparator)
	}
	base, err := ParseBaseURL(s[:idx])
	if err != nil {
		return VersionedURL{}, err
	}
	versionPart := s[idx+len(versionedURLSeparator):]
	version, err := strconv.ParseUint(versionPart, 10, 32)
	if err != nil {
		return VersionedURL{}, errors.Newf("versioned url %q has a non-integer version %q", s, versionPart)
	}
	if version == 0 {
		return VersionedURL{}, errors.Newf("versioned url %q has version zero; versions start at 1", s)
	}
	return VersionedURL{Base: base, Version: uint32(version)}, nil
}

// MustParseVersionedURL is ParseVersionedURL for statically known URLs.
// It panics on malformed input.
func MustParseVersionedURL(s string) VersionedURL {
	u, err := ParseVersionedURL(s)
	if err != nil {
		panic(err)
	}
	return u
}

func (v VersionedURL) String() string {
	return fmt.Sprintf("%s%s%d", v.Base, versionedURLSeparator, v.Version)
}

// IsZero reports whether v is the zero value.
func (v VersionedURL) IsZero() bool {
	return v.Base == "" && v.Version == 0
}

// MarshalText renders the "<base>v/<version>" wire form. Implementing the
// text interfaces (rather than json.Marshaler) lets VersionedURL also serve
// as a JSON object key.
func (v VersionedURL) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText parses the "<base>v/<version>" wire form.
func (v *VersionedURL) UnmarshalText(text []byte) error {
	parsed, err := ParseVersionedURL(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// NextVersion returns the URL of the edition that would succeed v.
func (v VersionedURL) NextVersion() VersionedURL {
	return VersionedURL{Base: v.Base, Version: v.Version + 1}
}

// TypeRecordID is the storage identity of one type edition, the decomposed
// form of a VersionedURL.
type TypeRecordID struct {
	BaseURL BaseURL `json:"baseUrl"`
	Version uint32  `json:"version"`
}

func (r TypeRecordID) String() string {
	return VersionedURL{Base: r.BaseURL, Version: r.Version}.String()
}

// URL recomposes the record ID into its versioned URL.
func (r TypeRecordID) URL() VersionedURL {
	return VersionedURL{Base: r.BaseURL, Version: r.Version}
}

// TypeReference is a "$ref" pointer from one schema to another.
type TypeReference struct {
	URL VersionedURL `json:"$ref"`
}
