// Package emby is the compiled-in adapter for Emby Server.
package emby

import (
	"github.com/themaluxis/MUM/builtin"
	"github.com/themaluxis/MUM/builtin/embyapi"
	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/media"
)

func init() {
	builtin.Register(builtin.CoreManifest(
		"emby",
		"Emby",
		"Adapter for Emby Server.",
		[]capability.Capability{
			capability.UserManagement,
			capability.LibraryAccess,
			capability.ActiveSessions,
			capability.Downloads,
			capability.Transcoding,
		},
		nil,
		nil,
	), New)
}

// New builds the Emby adapter on the shared Emby-compatible client.
func New(inst media.Instance) (media.Service, error) {
	return embyapi.New(inst, "emby", "X-Emby-Token")
}
