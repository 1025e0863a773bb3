//go:build !board_rev1 && !board_rev2

package setups

import "flowcode-go/services/hal/internal/platform/boards"

// Without a board tag the HAL starts empty; hosts push config/hal themselves.
var Selected = Setup{Board: boards.PinMap{Name: "none", Button: -1}}
