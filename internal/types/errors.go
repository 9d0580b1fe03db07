package types

import (
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindRemoteFetch       Kind = "remote_fetch"
	KindMalformedMetadata Kind = "malformed_metadata"
	KindImageDecode       Kind = "image_decode"
	KindRecognition       Kind = "recognition"
	KindAssembly          Kind = "assembly"
)

// Resources fetched from the rendering service.
const (
	ResourceMetadata = "metadata"
	ResourceImage    = "image"
)

// Error is the single failure type surfaced by a pipeline run.
// Page is 1-based and zero when the failure is not tied to a page.
type Error struct {
	Kind       Kind
	Stage      string
	Resource   string
	Page       int
	StatusCode int
	Err        error
}

// Sentinels for errors.Is; only Kind is compared.
var (
	ErrRemoteFetch       = &Error{Kind: KindRemoteFetch}
	ErrMalformedMetadata = &Error{Kind: KindMalformedMetadata}
	ErrImageDecode       = &Error{Kind: KindImageDecode}
	ErrRecognition       = &Error{Kind: KindRecognition}
	ErrAssembly          = &Error{Kind: KindAssembly}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Stage != "" {
		fmt.Fprintf(&b, " during %s", e.Stage)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, " (%s", e.Resource)
		if e.Page > 0 {
			fmt.Fprintf(&b, " page %d", e.Page)
		}
		b.WriteString(")")
	} else if e.Page > 0 {
		fmt.Fprintf(&b, " (page %d)", e.Page)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status code %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func RemoteFetch(resource string, page, status int, err error) *Error {
	return &Error{Kind: KindRemoteFetch, Resource: resource, Page: page, StatusCode: status, Err: err}
}

func MalformedMetadata(err error) *Error {
	return &Error{Kind: KindMalformedMetadata, Resource: ResourceMetadata, Err: err}
}

func ImageDecode(page int, err error) *Error {
	return &Error{Kind: KindImageDecode, Resource: ResourceImage, Page: page, Err: err}
}

func Recognition(page int, err error) *Error {
	return &Error{Kind: KindRecognition, Page: page, Err: err}
}

func Assembly(page int, err error) *Error {
	return &Error{Kind: KindAssembly, Page: page, Err: err}
}
