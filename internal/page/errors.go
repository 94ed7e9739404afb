package page

import "errors"

var ErrClosed = errors.New("page is unmounted")
