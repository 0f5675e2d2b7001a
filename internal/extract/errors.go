package extract

import "errors"

// ErrUnreadableFile marks a document that cannot be opened at all; per-page
// failures are logged and skipped instead.
var ErrUnreadableFile = errors.New("pdf file cannot be opened")
