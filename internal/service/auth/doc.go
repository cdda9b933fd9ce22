// Package auth validates the HS256 bearer tokens issued by the external
// identity provider. The sub claim carries the user's ID; issuer and
// audience are checked when configured. GenerateToken exists for local
// development and tests.
package auth
