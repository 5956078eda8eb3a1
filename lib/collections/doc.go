// Package collections provides queue, map and sorted-set views over records
// kept in the store. A view holds only its key; every operation runs as one
// unit of work through a store client, so views are cheap to create and safe
// for concurrent use.
//
// Keys are namespaced as rs:<version>:<key>, so a Queue named "jobs" lives
// at rs:0:jobs.
package collections
