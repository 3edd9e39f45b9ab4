// Package server is the development front end for the output tree: static files with
// pretty URLs on one listener, the live-reload socket and metrics on another.
package server
