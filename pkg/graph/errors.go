package graph

import (
	"github.com/pkg/errors"
)

// ErrEmptyInput is returned when a document has no extractable sentences
// after trimming. It aborts the whole run.
var ErrEmptyInput = errors.New("empty input: no extractable sentences")

// ErrUnsupportedEdition is returned when an unknown store-edition flag is
// requested.
var ErrUnsupportedEdition = errors.New("unsupported store edition")
