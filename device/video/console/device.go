package console

// ScrollDir is the direction console contents move when scrolled.
type ScrollDir uint8

const (
	// ScrollDirUp moves every row up, dropping the top rows.
	ScrollDirUp ScrollDir = iota

	// ScrollDirDown moves every row down, dropping the bottom rows.
	ScrollDirDown
)

// Dimension selects the unit Dimensions reports in.
type Dimension uint8

const (
	// Characters reports the size of the console in text cells.
	Characters Dimension = iota

	// Pixels reports the size of the console in pixels of the 8x16 text
	// mode font.
	Pixels
)

// Device is a text console a virtual terminal draws on. Coordinates are
// 1-based; the top-left cell is (1, 1).
type Device interface {
	// Dimensions returns the console width and height.
	Dimensions(Dimension) (uint32, uint32)

	// DefaultColors returns the attribute colours text is drawn with
	// unless a terminal selects others.
	DefaultColors() (fg, bg uint8)

	// Fill blanks a rectangle using the given colours.
	Fill(x, y, width, height uint32, fg, bg uint8)

	// Scroll moves the console contents by lines rows. The rows that
	// are uncovered keep their old contents; the caller clears them.
	Scroll(dir ScrollDir, lines uint32)

	// Write draws ch at (x, y).
	Write(ch byte, fg, bg uint8, x, y uint32)

	// SetCursor moves the cursor to (x, y).
	SetCursor(x, y uint32)
}
