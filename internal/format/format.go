package format

import (
	"fmt"
	"strings"
)

// Format is the raster format requested from the image endpoint.
type Format int

const (
	JPEG Format = iota + 1
	PNG
	WebP
)

var names = map[Format]string{
	JPEG: "jpeg",
	PNG:  "png",
	WebP: "webp",
}

var mimeTypes = map[Format]string{
	JPEG: "image/jpeg",
	PNG:  "image/png",
	WebP: "image/webp",
}

// All lists the supported formats in declaration order.
func All() []Format { return []Format{JPEG, PNG, WebP} }

func Parse(s string) (Format, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "jpg" {
		v = "jpeg"
	}
	for _, f := range All() {
		if names[f] == v {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unsupported image format %q (want jpeg, png or webp)", s)
}

func (f Format) Valid() bool {
	_, ok := names[f]
	return ok
}

// String returns the extension used in image URLs.
func (f Format) String() string {
	if n, ok := names[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", int(f))
}

func (f Format) MIME() string { return mimeTypes[f] }

func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid image format %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
