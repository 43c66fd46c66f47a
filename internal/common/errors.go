package common

import (
	"github.com/pkg/errors"
)

// ToError converts a recovered value into an error.
func ToError(err interface{}) error {
	if err == nil {
		return nil
	}
	switch v := err.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return errors.Errorf("%v", v)
	}
}
