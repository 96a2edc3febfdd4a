// Package keycache keeps the conversation keys the current user holds.
//
// Keys enter the cache only through FillCaches, which unpacks and verifies
// a batch of permissions and commits them together. Lookups for unknown key
// ids fetch the matching permission from the server and retry once.
package keycache
