package data

import "github.com/iotgcet/club-portal/internal/ports"

// ErrRollNumberTaken aliases the port sentinel so callers of the repo can
// match it without importing ports.
var ErrRollNumberTaken = ports.ErrRollNumberTaken
