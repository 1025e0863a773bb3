//go:build board_rev1 && board_rev2

package setups

// Board revisions are not pin compatible. Build with exactly one of
// board_rev1 or board_rev2.
var _ = board_rev1_and_board_rev2_are_mutually_exclusive
