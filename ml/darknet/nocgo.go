//go:build no_cgo

package darknet
