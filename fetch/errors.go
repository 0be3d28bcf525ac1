package fetch

import (
	"fmt"

	"github.com/wikigr/wikigr/core"
)

// WrapHTTPError classifies an error from an underlying HTTP call as
// transient, for providers to use uniformly.
func WrapHTTPError(op string, err error) error {
	return core.NewError(op, core.KindTransient, "", err)
}

// NewThinContentError reports that title's fetched content fell below
// a provider's configured minimum word count.
func NewThinContentError(op, title string, words, min int) error {
	return core.NewError(op, core.KindInvalidContent,
		fmt.Sprintf("%q has %d words, below the %d-word minimum", title, words, min), nil)
}
