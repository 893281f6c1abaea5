// Package register registers all relevant cameras and also API specific functions
package register

import (
	// for cameras.
	_ "github.com/sodistec/sodistec/components/camera/fake"
	_ "github.com/sodistec/sodistec/components/camera/ffmpeg"
	_ "github.com/sodistec/sodistec/components/camera/videosource"
)
