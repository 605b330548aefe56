// Package services holds shared error classification for external
// collaborators and their concrete clients in subpackages.
package services
