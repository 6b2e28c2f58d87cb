// Package mirror orchestrates quota, caches, timelines and the upstream
// client behind two entry points: UserPage and Post.
package mirror
