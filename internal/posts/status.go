// Package posts manages scheduled social-media posts: the status state
// machine, the kanban board, and pre-publish reminders.
package posts

import (
	"fmt"

	"github.com/nhle/epikom-hub/internal/apperr"
	"github.com/nhle/epikom-hub/internal/model"
)

// transitions lists the statuses reachable from each status.
var transitions = map[model.PostStatus][]model.PostStatus{
	model.PostDraft:     {model.PostScheduled, model.PostCancelled},
	model.PostScheduled: {model.PostPublished, model.PostCancelled, model.PostDraft},
	model.PostCancelled: {model.PostDraft},
	model.PostPublished: nil,
}

// CanTransition reports whether a post may move from one status to
// another. Staying in the same status is always allowed.
func CanTransition(from, to model.PostStatus) error {
	if _, ok := transitions[to]; !ok {
		return apperr.Invalid("status", "unknown status %q", to)
	}
	if from == to {
		return nil
	}
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return apperr.Invalid("status", "cannot move a %s post to %s", from, to)
}

var platformLabels = map[model.Platform]string{
	model.PlatformInstagram: "Instagram",
	model.PlatformFacebook:  "Facebook",
	model.PlatformTwitter:   "Twitter/X",
	model.PlatformLinkedIn:  "LinkedIn",
	model.PlatformTikTok:    "TikTok",
	model.PlatformYouTube:   "YouTube",
	model.PlatformOther:     "Other",
}

var platformIcons = map[model.Platform]string{
	model.PlatformInstagram: "📸",
	model.PlatformFacebook:  "📘",
	model.PlatformTwitter:   "🐦",
	model.PlatformLinkedIn:  "💼",
	model.PlatformTikTok:    "🎵",
	model.PlatformYouTube:   "▶️",
	model.PlatformOther:     "📱",
}

// PlatformLabel returns the display name of p.
func PlatformLabel(p model.Platform) string {
	if l, ok := platformLabels[p]; ok {
		return l
	}
	return string(p)
}

// PlatformIcon returns the glyph shown next to p.
func PlatformIcon(p model.Platform) string {
	if i, ok := platformIcons[p]; ok {
		return i
	}
	return platformIcons[model.PlatformOther]
}

// StatusLabel returns the board column title of s.
func StatusLabel(s model.PostStatus) string {
	switch s {
	case model.PostDraft:
		return "Draft"
	case model.PostScheduled:
		return "Scheduled"
	case model.PostPublished:
		return "Published"
	case model.PostCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown (%s)", s)
	}
}
