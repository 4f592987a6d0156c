// Package source reads the raw OIS dataset from a URL or a local file.
package source

import "errors"

// ErrUnreadable wraps every failure to obtain the raw dataset.
var ErrUnreadable = errors.New("source unreadable")
