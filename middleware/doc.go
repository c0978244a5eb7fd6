// Package middleware provides the HTTP guards that turn missing or invalid
// access tokens into the 401 signal the refresh coordinator reacts to.
package middleware
