package extension

import (
	"github.com/pkg/errors"
)

var errTagLengthExceed = errors.New("length of tag exceed 255")

// EncodeRouting encode routing tags to raw bytes.
// See: https://github.com/rsocket/rsocket/blob/master/Extensions/Routing.md
func EncodeRouting(tag string, otherTags ...string) (raw []byte, err error) {
	for _, it := range append([]string{tag}, otherTags...) {
		if len(it) > 0xFF {
			return nil, errTagLengthExceed
		}
		raw = append(raw, byte(len(it)))
		raw = append(raw, it...)
	}
	return
}

// ParseRoutingTags parse routing tags in metadata.
func ParseRoutingTags(bs []byte) (tags []string, err error) {
	totals := len(bs)
	cursor := 0
	for cursor < totals {
		tagLen := int(bs[cursor])
		end := cursor + 1 + tagLen
		if end > totals {
			err = errors.Errorf("bad routing tags: illegal tag len %d", tagLen)
			return
		}
		tags = append(tags, string(bs[cursor+1:end]))
		cursor = end
	}
	return
}

// ParseRoute returns the first routing tag.
func ParseRoute(bs []byte) (string, error) {
	tags, err := ParseRoutingTags(bs)
	if err != nil {
		return "", err
	}
	if len(tags) < 1 {
		return "", errors.New("bad routing tags: no tag")
	}
	return tags[0], nil
}
