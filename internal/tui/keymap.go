package tui

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyCtrlC      = "ctrl+c"
	KeyStart      = "r"
	KeyScreenshot = " "
	KeyShot       = "s"
	KeyStop       = "x"
	KeyTranscribe = "t"
	KeyCancel     = "c"
	KeyExport     = "e"
	KeyExportBare = "E"
	KeyDiscard    = "d"
)
