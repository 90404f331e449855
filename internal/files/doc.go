// Package files holds the value types shared by the tracking components: the
// Locator sum type that addresses a directory either by path or by opaque
// handle, the Record handed to consumers, and the filename Filter applied
// identically during baseline enumeration and live watching.
package files
