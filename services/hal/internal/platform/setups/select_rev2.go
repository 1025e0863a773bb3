//go:build board_rev2

package setups

import "flowcode-go/services/hal/internal/platform/boards"

var Selected = For(boards.Rev2)
