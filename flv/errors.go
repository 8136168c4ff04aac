package flv

import "errors"

// ErrInvalidFormat marks malformed FLV bytes: a bad signature, a short tag
// header, an unknown tag type, or a truncated body.
var ErrInvalidFormat = errors.New("flv: invalid format")

// ErrUnsupportedFeature marks a well-formed but out-of-scope tag: a tag with
// the encryption bit set is recognized but never decoded.
var ErrUnsupportedFeature = errors.New("flv: unsupported feature")
