// Package models holds the domain entities: users, posts, timelines and
// their feed pages.
//
// Entities are shared mutable state. A User or Post returned from the
// cache is the same pointer every requester sees, so partial hydration
// happens in place under each entity's own lock and handlers serialize
// through Snapshot views instead of the entities themselves.
package models
