package memory

import "github.com/m-mizutani/goerr/v2"

// ErrNotFound is returned when an entity to be modified does not exist
var ErrNotFound = goerr.New("not found")
