package app

import "github.com/rs/zerolog"

// Config holds runtime wiring options for building the client app.
type Config struct {
	Home     string         // config directory, e.g. $HOME/.unichat
	RelayURL string         // relay REST base URL, e.g. http://127.0.0.1:8080
	WSURL    string         // relay websocket URL; derived from RelayURL when empty
	Log      zerolog.Logger // defaults to a disabled logger
}
