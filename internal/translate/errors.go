package translate

import "errors"

var ErrTranslateFailed = errors.New("translation failed")
