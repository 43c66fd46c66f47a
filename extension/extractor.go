package extension

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// Names of built-in extracted metadata.
const (
	MetadataRoute   = "route"
	MetadataAuth    = "auth"
	MetadataTraceID = "traceId"
)

// DecodeFunc decodes a metadata entry.
type DecodeFunc = func(raw []byte) (interface{}, error)

type extractorEntry struct {
	name   string
	decode DecodeFunc
}

// MetadataExtractor maps MIME types to names and decode functions.
// It extracts composite metadata or a single metadata into a map.
type MetadataExtractor struct {
	mu      sync.RWMutex
	entries map[string]extractorEntry
}

// NewMetadataExtractor creates an extractor with built-in decoders of
// routing, authentication and trace id.
func NewMetadataExtractor() *MetadataExtractor {
	e := &MetadataExtractor{
		entries: make(map[string]extractorEntry),
	}
	e.Register(MessageRouting.String(), MetadataRoute, func(raw []byte) (interface{}, error) {
		return ParseRoute(raw)
	})
	e.Register(MessageAuthentication.String(), MetadataAuth, func(raw []byte) (interface{}, error) {
		return ParseAuthentication(raw)
	})
	e.Register(MIMETraceID, MetadataTraceID, func(raw []byte) (interface{}, error) {
		return ParseTraceID(raw)
	})
	return e
}

// Register registers a decoder, a registered MIME type is replaced.
func (e *MetadataExtractor) Register(mime string, name string, decode DecodeFunc) *MetadataExtractor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[mime] = extractorEntry{name: name, decode: decode}
	return e
}

// RegisterText registers a decoder which returns metadata as string.
func (e *MetadataExtractor) RegisterText(mime string, name string) *MetadataExtractor {
	return e.Register(mime, name, DecodeText)
}

// RegisterJSON registers a decoder which unmarshals JSON into values created by newValue.
// If newValue is nil, JSON is decoded as generic value.
func (e *MetadataExtractor) RegisterJSON(mime string, name string, newValue func() interface{}) *MetadataExtractor {
	return e.Register(mime, name, func(raw []byte) (interface{}, error) {
		if newValue == nil {
			return DecodeJSON(raw)
		}
		v := newValue()
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, errors.Wrap(err, "decode json metadata failed")
		}
		return v, nil
	})
}

// Extract decodes metadata of given MIME type.
// Composite metadata is decoded entry by entry, entries without decoder are skipped.
func (e *MetadataExtractor) Extract(metadataMIME string, raw []byte) (map[string]interface{}, error) {
	ret := make(map[string]interface{})
	if metadataMIME == MessageCompositeMetadata.String() {
		scanner := NewCompositeMetadataScanner(raw)
		for scanner.Scan() {
			entry := scanner.Entry()
			if err := e.extractOnce(ret, entry.MIME(), entry.Payload()); err != nil {
				return nil, err
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return ret, nil
	}
	if err := e.extractOnce(ret, metadataMIME, raw); err != nil {
		return nil, err
	}
	return ret, nil
}

func (e *MetadataExtractor) extractOnce(ret map[string]interface{}, mime string, raw []byte) error {
	e.mu.RLock()
	entry, ok := e.entries[mime]
	e.mu.RUnlock()
	if !ok {
		return nil
	}
	v, err := entry.decode(raw)
	if err != nil {
		return errors.Wrapf(err, "extract metadata %s failed", mime)
	}
	ret[entry.name] = v
	return nil
}

// DecodeText decodes metadata as UTF8 string.
func DecodeText(raw []byte) (interface{}, error) {
	return string(raw), nil
}

// DecodeJSON decodes metadata as generic JSON value.
func DecodeJSON(raw []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "decode json metadata failed")
	}
	return v, nil
}
