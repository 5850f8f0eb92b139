// Package remotestore mirrors approved artifacts to remote object storage on
// a best-effort basis. A disabled or credential-less configuration yields a
// client whose uploads are silent no-ops.
package remotestore
