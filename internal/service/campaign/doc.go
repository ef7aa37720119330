// Package campaign holds campaign CRUD and lifecycle logic. The dispatcher
// and scheduler drive status transitions through this package so the
// draft→scheduled→sending→completed progression is enforced in one place.
package campaign
