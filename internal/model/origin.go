package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Origin is the remote endpoint a working copy mirrors, with an optional
// bearer token for HTTP(S) remotes.
type Origin struct {
	URL   string  `json:"url" yaml:"url"`
	Token *string `json:"token,omitempty" yaml:"token,omitempty"`
}

// ErrInvalidOrigin is returned when an origin record cannot be decoded.
var ErrInvalidOrigin = errors.New("invalid origin")

// HasToken reports whether a non-empty token is set.
func (o Origin) HasToken() bool {
	return o.Token != nil && strings.TrimSpace(*o.Token) != ""
}

// Validate checks that the record names a URL.
func (o Origin) Validate() error {
	if strings.TrimSpace(o.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidOrigin)
	}
	return nil
}

// DecodeOrigin parses a JSON origin record. Unknown fields are rejected.
func DecodeOrigin(data []byte) (Origin, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var o Origin
	if err := dec.Decode(&o); err != nil {
		return Origin{}, fmt.Errorf("%w: %w", ErrInvalidOrigin, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Origin{}, fmt.Errorf("%w: trailing data after record", ErrInvalidOrigin)
	}
	if err := o.Validate(); err != nil {
		return Origin{}, err
	}
	return o, nil
}

// DecodeOriginYAML parses a YAML origin record. Unknown fields are rejected.
func DecodeOriginYAML(data []byte) (Origin, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var o Origin
	if err := dec.Decode(&o); err != nil {
		return Origin{}, fmt.Errorf("%w: %w", ErrInvalidOrigin, err)
	}
	if err := o.Validate(); err != nil {
		return Origin{}, err
	}
	return o, nil
}
