package capture

import (
	"fmt"
	"path"
	"time"

	"github.com/gosimple/slug"
)

// Blob key prefixes for captured artifacts.
const (
	ScreenshotPrefix = "screenshots"
	ThumbnailPrefix  = "thumbnails"
)

// ArtifactPaths builds the date-partitioned blob keys for a screenshot and
// its thumbnail, e.g. screenshots/2024-05-01/example-com_desktop_20240501_101500_v1.png.
func ArtifactPaths(domain, device string, at time.Time, version int) (string, string) {
	if version <= 0 {
		version = 1
	}
	day := at.Format("2006-01-02")
	stem := fmt.Sprintf("%s_%s_%s_v%d", slug.Make(domain), slug.Make(device), at.Format("20060102_150405"), version)
	return path.Join(ScreenshotPrefix, day, stem+".png"),
		path.Join(ThumbnailPrefix, day, stem+"_thumb.png")
}
