// Package all pulls in every compiled-in core adapter. Import it for its
// side effects:
//
//	import _ "github.com/themaluxis/MUM/builtin/all"
package all

import (
	_ "github.com/themaluxis/MUM/builtin/audiobookshelf"
	_ "github.com/themaluxis/MUM/builtin/emby"
	_ "github.com/themaluxis/MUM/builtin/jellyfin"
	_ "github.com/themaluxis/MUM/builtin/kavita"
	_ "github.com/themaluxis/MUM/builtin/komga"
	_ "github.com/themaluxis/MUM/builtin/plex"
	_ "github.com/themaluxis/MUM/builtin/romm"
)
