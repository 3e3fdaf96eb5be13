// Copyright 2025 Certen Protocol

package orderintegration

import "errors"

// ErrOrderHashMismatch is returned when extraData's order_hash does not
// match the order_hash the host LOP passed into the callback.
var ErrOrderHashMismatch = errors.New("orderintegration: order_hash mismatch between order and extraData")
