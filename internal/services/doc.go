// Package services defines the shared error taxonomy for tryon components
// and hosts clients for external collaborators in subpackages.
//
// Errors are tagged with sentinel markers (not found, validation, external
// service, persistence) so call sites can classify failures uniformly: the
// HTTP API maps them to status codes and the processor maps them to queue
// failure states.
package services
