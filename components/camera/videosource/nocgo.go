//go:build no_cgo

package videosource
