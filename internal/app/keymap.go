package app

// Key binding constants used in the update handlers.
const (
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyEsc       = "esc"
	KeyTab       = "tab"
	KeyShiftTab  = "shift+tab"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyLeft      = "left"
	KeyRight     = "right"
	KeyJ         = "j"
	KeyK         = "k"
	KeyEnter     = "enter"
	KeySearch    = "/"
	KeyNew       = "n"
	KeyStart     = "s"
	KeyReport    = "r"
	KeyRefresh   = "R"
	KeyAnalyze   = "a"
	KeyLogout    = "L"
	KeyMic       = "m"
	KeyCamera    = "v"
	KeyEnd       = "e"
	KeyCertify   = "c"
	KeyConfirm   = "y"
	KeyToggleReg = "ctrl+r"
)
