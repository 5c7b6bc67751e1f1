// Package opencv provides a webcam grabber and an HSV mask counter backed by
// OpenCV. Build with -tags opencv to enable it; otherwise the camera is
// unavailable and the counter falls back to the pure Go implementation.
package opencv
