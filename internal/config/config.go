// Package config locates (and creates, if missing) the TOML
// configuration file cmd/wsgate reads its settings from, the way
// cmd/timpani's configFile() helper did for the teacher.
package config

import (
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/tzrikka/xdg"

	"github.com/tzrikka/wsgate/internal/logger"
)

// configDirName and configFileName name the TOML config file within the
// XDG config directory (typically ~/.config/wsgate/config.toml).
const (
	configDirName  = "wsgate"
	configFileName = "config.toml"
)

// ConfigFile returns the path to this application's TOML config file,
// creating an empty one (and its parent directory) if it doesn't exist
// yet. It terminates the process on failure, matching the teacher's own
// configFile() helper, which has no recovery path for an unwritable XDG
// config directory.
func ConfigFile() altsrc.StringSourcer {
	path, err := xdg.CreateFile(xdg.ConfigHome, configDirName, configFileName)
	if err != nil {
		logger.FatalError("failed to create config file", err)
	}
	return altsrc.StringSourcer(path)
}
