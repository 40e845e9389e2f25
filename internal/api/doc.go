// Package api exposes the HTTP surface of the service: section generation,
// status, and regeneration endpoints plus the error-to-status mapping that
// keeps internal failures out of client responses.
package api
