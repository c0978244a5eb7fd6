// Package jwt issues and verifies the short-lived access tokens minted at
// login and on every successful credential renewal.
package jwt
