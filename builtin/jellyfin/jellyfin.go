// Package jellyfin is the compiled-in adapter for Jellyfin.
package jellyfin

import (
	"github.com/themaluxis/MUM/builtin"
	"github.com/themaluxis/MUM/builtin/embyapi"
	"github.com/themaluxis/MUM/capability"
	"github.com/themaluxis/MUM/media"
)

func init() {
	builtin.Register(builtin.CoreManifest(
		"jellyfin",
		"Jellyfin",
		"Adapter for Jellyfin.",
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

// New builds the Jellyfin adapter on the shared Emby-compatible client.
// Jellyfin accepts the legacy Emby token header.
func New(inst media.Instance) (media.Service, error) {
	return embyapi.New(inst, "jellyfin", "X-Emby-Token")
}
