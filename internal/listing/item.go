package listing

import "time"

// Channel names of the two release tracks served by the listing endpoint.
const (
	ChannelStable     = "stable"
	ChannelTestflight = "testflight"
)

// Channels lists all polled channels in tick order.
var Channels = []string{ChannelStable, ChannelTestflight}

// Item represents one entry of a channel directory listing. Only Name and
// ModTime are interpreted; the remaining fields are passed through from the
// listing service and only matter for fingerprinting, which works on the raw
// payload anyway.
type Item struct {
	Name      string    `json:"name"`
	ModTime   time.Time `json:"mod_time"`
	Size      int64     `json:"size,omitempty"`
	URL       string    `json:"url,omitempty"`
	Mode      uint32    `json:"mode,omitempty"`
	IsDir     bool      `json:"is_dir,omitempty"`
	IsSymlink bool      `json:"is_symlink,omitempty"`
}
