// Package anomaly flags implausible location fixes and suspicious attendance
// patterns.  Every function here is pure: reports are returned as data and
// the caller decides whether to audit or display them.
package anomaly
