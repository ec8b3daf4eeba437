package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
)

// DefaultMaxBodySize is the default limit for decoded request bodies (50 MiB).
// Collector uploads carry whole browser histories, so this is far above a typical API limit.
const DefaultMaxBodySize = 50 << 20

const (
	mediaTypeJSON = "application/json"
	mediaTypeCBOR = "application/cbor"
)

// cborDecMode decodes untyped maps as map[string]any so CBOR and JSON
// envelopes produce the same payload shapes.
var cborDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 20,
		MaxNestedLevels:  64,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// Body creates a binder for JSON or CBOR request bodies.
//
// A "Content-Encoding: gzip" body is inflated before decoding. maxSize bounds the
// decoded body; zero or negative means DefaultMaxBodySize. CBOR decoding honors
// `json` struct tags, so one request type serves both media types.
//
//	var req fragmentRequest
//	if err := binder.Body(cfg.MaxBodySize)(r, &req); err != nil {
//		return response.Error(err)
//	}
func Body(maxSize int64) Binder {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}

	return func(r *http.Request, v any) error {
		if err := r.Context().Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseBody, err)
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected %s or %s", ErrMissingContentType, mediaTypeJSON, mediaTypeCBOR)
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
		}
		if mediaType != mediaTypeJSON && mediaType != mediaTypeCBOR {
			return fmt.Errorf("%w: got %s", ErrUnsupportedMediaType, mediaType)
		}

		body, err := readBody(r, maxSize)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return fmt.Errorf("%w: empty body", ErrFailedToParseBody)
		}

		if mediaType == mediaTypeCBOR {
			if err := cborDecMode.Unmarshal(body, v); err != nil {
				return fmt.Errorf("%w: %v", ErrFailedToParseBody, err)
			}
			return nil
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseBody, err)
		}
		// Trailing data after the envelope means a malformed or concatenated upload.
		if dec.More() {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseBody)
		}
		return nil
	}
}

// readBody reads at most maxSize decoded bytes, inflating gzip bodies.
func readBody(r *http.Request, maxSize int64) ([]byte, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("%w: empty body", ErrFailedToParseBody)
	}

	var src io.Reader = r.Body
	switch enc := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedToParseBody, err)
		}
		defer zr.Close()
		src = zr
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}

	// +1 byte detects oversized bodies without reading them fully.
	body, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, maxErr.Limit)
		}
		return nil, fmt.Errorf("%w: failed to read request body: %v", ErrFailedToParseBody, err)
	}
	if int64(len(body)) > maxSize {
		return nil, fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, maxSize)
	}
	return body, nil
}
