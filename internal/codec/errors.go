package codec

import "errors"

// ErrInvalidCommand is returned by Encode when the command string is empty
// or contains anything other than complete tokens.
// Check with errors.Is().
var ErrInvalidCommand = errors.New("codec: invalid command string")
