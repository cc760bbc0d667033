// Package cacherefresh defines the change payloads broadcast after content,
// content types or public access rules change, and the notifications that
// carry them.
package cacherefresh

import (
	"strings"

	"github.com/google/uuid"
)

// TreeChangeTypes describes what happened to a content node.
type TreeChangeTypes uint8

const (
	TreeRefreshNode TreeChangeTypes = 1 << iota
	TreeRefreshBranch
	TreeRemove
	TreeRefreshAll

	TreeChangeNone TreeChangeTypes = 0
)

// Has reports whether all bits of flag are set.
func (t TreeChangeTypes) Has(flag TreeChangeTypes) bool {
	return flag != 0 && t&flag == flag
}

func (t TreeChangeTypes) String() string {
	if t == TreeChangeNone {
		return "None"
	}
	var parts []string
	for _, f := range []struct {
		flag TreeChangeTypes
		name string
	}{
		{TreeRefreshNode, "RefreshNode"},
		{TreeRefreshBranch, "RefreshBranch"},
		{TreeRemove, "Remove"},
		{TreeRefreshAll, "RefreshAll"},
	} {
		if t.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, ",")
}

// ContentTypeChangeTypes describes what happened to a content type.
type ContentTypeChangeTypes uint8

const (
	ContentTypeCreate ContentTypeChangeTypes = 1 << iota
	ContentTypeRefreshMain
	ContentTypeRefreshOther
	ContentTypeRemove

	ContentTypeChangeNone ContentTypeChangeTypes = 0
)

// Has reports whether all bits of flag are set.
func (t ContentTypeChangeTypes) Has(flag ContentTypeChangeTypes) bool {
	return flag != 0 && t&flag == flag
}

func (t ContentTypeChangeTypes) String() string {
	if t == ContentTypeChangeNone {
		return "None"
	}
	var parts []string
	for _, f := range []struct {
		flag ContentTypeChangeTypes
		name string
	}{
		{ContentTypeCreate, "Create"},
		{ContentTypeRefreshMain, "RefreshMain"},
		{ContentTypeRefreshOther, "RefreshOther"},
		{ContentTypeRemove, "Remove"},
	} {
		if t.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, ",")
}

// ContentPayload identifies one changed content node.
type ContentPayload struct {
	ID          int
	Key         uuid.UUID
	ChangeTypes TreeChangeTypes
}

// ContentTypePayload identifies one changed content type.
type ContentTypePayload struct {
	ID          int
	Alias       string
	ChangeTypes ContentTypeChangeTypes
}

// ContentCacheRefresherNotification is published after content changes.
type ContentCacheRefresherNotification struct {
	Payloads []ContentPayload
}

// ContentTypeCacheRefresherNotification is published after content types change.
type ContentTypeCacheRefresherNotification struct {
	Payloads []ContentTypePayload
}

// PublicAccessCacheRefresherNotification is a coarse "public access changed"
// signal. It never says what changed.
type PublicAccessCacheRefresherNotification struct{}

func (*ContentCacheRefresherNotification) NotificationName() string {
	return "cache_refresher.content"
}

func (*ContentTypeCacheRefresherNotification) NotificationName() string {
	return "cache_refresher.content_type"
}

func (*PublicAccessCacheRefresherNotification) NotificationName() string {
	return "cache_refresher.public_access"
}
