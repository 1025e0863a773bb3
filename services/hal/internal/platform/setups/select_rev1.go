//go:build board_rev1

package setups

import "flowcode-go/services/hal/internal/platform/boards"

var Selected = For(boards.Rev1)
