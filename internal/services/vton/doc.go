// Package vton provides the HTTP client for the external virtual try-on
// inference service.
package vton
